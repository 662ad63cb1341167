package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tournevent/apc/pkg/shipper"
)

var (
	orderCarrier string
	labelFormat  string
	labelOutput  string
)

var labelCmd = &cobra.Command{
	Use:   "label ORDER_NUMBER",
	Short: "Download the shipping label of an order",
	Args:  cobra.ExactArgs(1),
	RunE:  runLabel,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel ORDER_NUMBER",
	Short: "Cancel an order that has not been collected",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var trackCmd = &cobra.Command{
	Use:   "track WAYBILL",
	Short: "Show the tracking history of a consignment",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

func init() {
	for _, cmd := range []*cobra.Command{labelCmd, cancelCmd, trackCmd} {
		cmd.Flags().StringVar(&orderCarrier, "carrier", "", "carrier account (default: the only registered one)")
	}
	labelCmd.Flags().StringVarP(&labelFormat, "format", "f", "PDF", "label format: PDF, PNG or ZPL")
	labelCmd.Flags().StringVarP(&labelOutput, "output", "o", "", "write the label here (default: <order>.<format>)")

	rootCmd.AddCommand(labelCmd, cancelCmd, trackCmd)
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	carrier, err := a.carrier(orderCarrier)
	if err != nil {
		return err
	}

	label, err := carrier.GetLabel(ctx, &shipper.LabelRequest{
		OrderNumber: args[0],
		Format:      shipper.LabelFormat(strings.ToUpper(labelFormat)),
	})
	if err != nil {
		return err
	}

	path := labelOutput
	if path == "" {
		path = label.OrderNumber + "." + strings.ToLower(string(label.Format))
	}
	if err := os.WriteFile(path, label.Data, 0o644); err != nil {
		return fmt.Errorf("writing label: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s label written to %s (%d bytes)\n", label.Format, path, len(label.Data))
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	carrier, err := a.carrier(orderCarrier)
	if err != nil {
		return err
	}
	if err := carrier.CancelOrder(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "order %s cancelled\n", args[0])
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	carrier, err := a.carrier(orderCarrier)
	if err != nil {
		return err
	}
	tracking, err := carrier.Track(ctx, args[0])
	if err != nil {
		return err
	}
	printTracking(cmd.OutOrStdout(), tracking)
	return nil
}
