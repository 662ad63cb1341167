package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/apc/pkg/shipper"
	"go.uber.org/zap"
)

// shipFlags holds the customer side of a booking. The company side comes
// from the APC_COMPANY_* configuration.
type shipFlags struct {
	carrier      string
	service      string
	company      string
	lines        []string
	city         string
	county       string
	postcode     string
	country      string
	contact      string
	phone        string
	email        string
	safePlace    string
	instructions string
	weights      []float64
	reference    string
	date         string
	readyAt      string
	closedAt     string
	description  string
	value        float64
	fragile      bool
}

func (f *shipFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.carrier, "carrier", "", "carrier account (default: the only registered one)")
	fs.StringVarP(&f.service, "service", "s", "", "APC product code, e.g. ND16")
	fs.StringVar(&f.company, "company", "", "customer company name")
	fs.StringArrayVar(&f.lines, "line", nil, "address line (repeat for a second line)")
	fs.StringVar(&f.city, "city", "", "customer town or city")
	fs.StringVar(&f.county, "county", "", "customer county")
	fs.StringVarP(&f.postcode, "postcode", "p", "", "customer postcode")
	fs.StringVar(&f.country, "country", "GB", "customer ISO country code")
	fs.StringVar(&f.contact, "contact", "", "contact name")
	fs.StringVar(&f.phone, "phone", "", "contact phone")
	fs.StringVar(&f.email, "email", "", "contact email")
	fs.StringVar(&f.safePlace, "safe-place", "", "safe place for unattended delivery")
	fs.StringVar(&f.instructions, "instructions", "", "driver instructions")
	fs.Float64SliceVarP(&f.weights, "weight", "w", nil, "item weight in kg, one item per value")
	fs.StringVar(&f.reference, "reference", "", "your reference")
	fs.StringVar(&f.date, "date", "", "collection date, YYYY-MM-DD (default: today)")
	fs.StringVar(&f.readyAt, "ready-at", "", "ready time, HH:MM")
	fs.StringVar(&f.closedAt, "closed-at", "", "closing time, HH:MM")
	fs.StringVar(&f.description, "goods", "", "goods description")
	fs.Float64Var(&f.value, "value", 0, "goods value in GBP")
	fs.BoolVar(&f.fragile, "fragile", false, "goods are fragile")

	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("postcode")
	_ = cmd.MarkFlagRequired("weight")
}

func (f *shipFlags) request(company shipper.Company, kind shipper.ShipmentKind) (*shipper.ShipmentRequest, error) {
	customer := shipper.NewAddress(f.lines, f.city, f.postcode, f.country,
		shipper.WithCompanyName(f.company),
		shipper.WithCounty(f.county),
		shipper.WithSafePlace(f.safePlace),
		shipper.WithContact(shipper.Contact{Name: f.contact, Phone: f.phone, Email: f.email}),
	)

	items := make([]shipper.Item, 0, len(f.weights))
	for _, w := range f.weights {
		items = append(items, shipper.NewItem(w))
	}

	opts := []shipper.RequestOption{
		shipper.WithReference(f.reference),
		shipper.WithInstructions(f.instructions),
	}
	if f.date != "" {
		date, err := time.Parse("2006-01-02", f.date)
		if err != nil {
			return nil, fmt.Errorf("--date: %w", err)
		}
		opts = append(opts, shipper.WithCollectionDate(date))
	}
	if f.readyAt != "" || f.closedAt != "" {
		from, to, err := parseHours(f.readyAt, f.closedAt, company)
		if err != nil {
			return nil, err
		}
		opts = append(opts, shipper.WithHours(from, to))
	}
	if f.description != "" || f.value > 0 || f.fragile {
		opts = append(opts, shipper.WithGoods(shipper.GoodsInfo{
			Description: f.description,
			Value:       f.value,
			Fragile:     f.fragile,
		}))
	}

	if kind == shipper.KindCollection {
		return shipper.NewCollectionRequest(company, f.service, customer, items, opts...), nil
	}
	return shipper.NewDeliveryRequest(company, f.service, customer, items, opts...), nil
}

var (
	deliverFlags shipFlags
	collectFlags shipFlags
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Book a delivery from the company to a customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShip(cmd, &deliverFlags, shipper.KindDelivery)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Book a collection from a customer back to the company",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShip(cmd, &collectFlags, shipper.KindCollection)
	},
}

func init() {
	deliverFlags.register(deliverCmd)
	collectFlags.register(collectCmd)
	rootCmd.AddCommand(deliverCmd, collectCmd)
}

func runShip(cmd *cobra.Command, f *shipFlags, kind shipper.ShipmentKind) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	carrier, err := a.carrier(f.carrier)
	if err != nil {
		return err
	}

	req, err := f.request(a.company, kind)
	if err != nil {
		return err
	}

	var result *shipper.Result
	if kind == shipper.KindCollection {
		result = carrier.CreateCollection(ctx, req)
	} else {
		result = carrier.CreateDelivery(ctx, req)
	}

	c, ok := result.Consignment()
	if !ok {
		printFailure(cmd.ErrOrStderr(), result.Failure())
		return result.Err()
	}

	a.logger.Debug("Booked", zap.String("kind", string(kind)), zap.String("waybill", c.Number))
	printConsignment(cmd.OutOrStdout(), carrier.Name(), c)
	return nil
}

func parseHours(readyAt, closedAt string, company shipper.Company) (shipper.Clock, shipper.Clock, error) {
	from, to := company.OpenFrom, company.OpenTo
	var err error
	if readyAt != "" {
		if from, err = shipper.ParseClock(readyAt); err != nil {
			return from, to, fmt.Errorf("--ready-at: %w", err)
		}
	}
	if closedAt != "" {
		if to, err = shipper.ParseClock(closedAt); err != nil {
			return from, to, fmt.Errorf("--closed-at: %w", err)
		}
	}
	return from, to, nil
}
