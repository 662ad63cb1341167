package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/apc/pkg/shipper"
)

var servicesFlags struct {
	carriers      []string
	postcode      string
	country       string
	weights       []float64
	date          string
	itemType      string
	deliveryGroup string
	tracked       bool
	signed        bool
	maxDays       int
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the services available from the company to a postcode",
	RunE:  runServices,
}

func init() {
	fs := servicesCmd.Flags()
	fs.StringSliceVar(&servicesFlags.carriers, "carrier", nil, "carrier accounts to ask (default: all)")
	fs.StringVarP(&servicesFlags.postcode, "postcode", "p", "", "delivery postcode")
	fs.StringVar(&servicesFlags.country, "country", "GB", "delivery ISO country code")
	fs.Float64SliceVarP(&servicesFlags.weights, "weight", "w", []float64{1}, "item weight in kg, one item per value")
	fs.StringVar(&servicesFlags.date, "date", "", "collection date, YYYY-MM-DD (default: today)")
	fs.StringVar(&servicesFlags.itemType, "item-type", "", "only services for this item type (PARCEL, PACK, ...)")
	fs.StringVar(&servicesFlags.deliveryGroup, "group", "", "only services in this delivery group")
	fs.BoolVar(&servicesFlags.tracked, "tracked", false, "only tracked services")
	fs.BoolVar(&servicesFlags.signed, "signed", false, "only signed-for services")
	fs.IntVar(&servicesFlags.maxDays, "max-days", 0, "only services delivering within this many days")
	_ = servicesCmd.MarkFlagRequired("postcode")

	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := servicesFlags

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	items := make([]shipper.Item, 0, len(f.weights))
	for _, w := range f.weights {
		items = append(items, shipper.NewItem(w))
	}
	q := shipper.NewServiceQuery(a.company, f.postcode, f.country, items)
	if f.date != "" {
		date, err := time.Parse("2006-01-02", f.date)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		q.CollectionDate = shipper.DateOnly(date)
	}

	var preds []shipper.ServicePredicate
	if f.itemType != "" {
		preds = append(preds, shipper.ByItemType(shipper.ItemType(f.itemType)))
	}
	if f.deliveryGroup != "" {
		preds = append(preds, shipper.ByDeliveryGroup(f.deliveryGroup))
	}
	if f.tracked {
		preds = append(preds, shipper.Tracked())
	}
	if f.signed {
		preds = append(preds, shipper.Signed())
	}
	if f.maxDays > 0 {
		preds = append(preds, shipper.MaxTransitDays(f.maxDays))
	}

	found, errs := a.registry.ServicesFrom(ctx, q, f.carriers)
	for _, err := range errs {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	}
	if len(found) == 0 && len(errs) > 0 {
		return errs[0]
	}

	filtered := make([]*shipper.Services, 0, len(found))
	for _, s := range found {
		filtered = append(filtered, s.Filter(preds...))
	}
	printServices(cmd.OutOrStdout(), filtered)
	return nil
}
