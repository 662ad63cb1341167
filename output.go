package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tournevent/apc/pkg/shipper"
)

func printConsignment(w io.Writer, carrier string, c shipper.Consignment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", k, v)
		}
	}
	row("Carrier", carrier)
	row("Waybill", c.Number)
	row("Order", c.OrderNumber)
	row("Barcode", c.Barcode)
	row("Reference", c.Reference)
	row("Service", c.ProductCode)
	row("Network", c.NetworkName)
	row("Collection", formatDay(c.CollectionDate))
	row("Delivery", formatDay(c.DeliveryDate))
	row("Items", strings.Join(c.ItemTrackingNumbers, ", "))
}

func printFailure(w io.Writer, e *shipper.ShipperError) {
	if e == nil {
		return
	}
	fmt.Fprintf(w, "%s %s (%s): %s\n", e.Carrier, e.Code, e.Kind, e.Message)
	for _, f := range e.Fields {
		fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
	}
}

func printServices(w io.Writer, found []*shipper.Services) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "CARRIER\tCODE\tNAME\tTYPE\tDAYS\tTRACKED\tSIGNED\tDELIVERY")
	for _, services := range found {
		for _, s := range services.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d-%d\t%t\t%t\t%s\n",
				services.Carrier, s.Code, s.Name, s.ItemType,
				s.MinTransitDays, s.MaxTransitDays, s.Tracked, s.Signed,
				formatDay(s.EstimatedDeliveryDate))
		}
	}
}

func printTracking(w io.Writer, t *shipper.Tracking) {
	fmt.Fprintf(w, "%s: %s\n", t.WayBill, t.Status)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, e := range t.Events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.DateTime), e.Status, e.Description, e.Location)
	}
}

func formatDay(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
