package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Additional-Code/orderservice/internal/dto"
	"github.com/Additional-Code/orderservice/internal/entity"
	repo "github.com/Additional-Code/orderservice/internal/repository/order"
	ordersvc "github.com/Additional-Code/orderservice/internal/service/order"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect and create orders",
	}
	cmd.AddCommand(newOrderGetCmd(), newOrderListCmd(), newOrderCreateCmd())
	return cmd
}

func newOrderGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Print a single order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q: %w", args[0], err)
			}
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				order, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.FromOrder(order))
			})
		},
	}
}

func newOrderListCmd() *cobra.Command {
	var filter repo.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				orders, err := svc.List(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.FromOrders(orders))
			})
		},
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only orders with this status")
	cmd.Flags().StringVar(&filter.CustomerName, "customer", "", "Only orders for this customer")
	cmd.Flags().IntVar(&filter.Limit, "limit", repo.DefaultLimit, "Maximum number of orders")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Number of orders to skip")
	return cmd
}

func newOrderCreateCmd() *cobra.Command {
	var (
		req       dto.OrderRequest
		price     string
		orderDate string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := buildOrder(req, price, orderDate)
			if err != nil {
				return err
			}
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				if err := svc.Create(ctx, order); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.FromOrder(order))
			})
		},
	}
	cmd.Flags().StringVar(&req.CustomerName, "customer", "", "Customer name")
	cmd.Flags().StringVar(&req.ProductName, "product", "", "Product name")
	cmd.Flags().IntVar(&req.Quantity, "quantity", 0, "Quantity")
	cmd.Flags().StringVar(&price, "price", "0", "Unit price, e.g. 19.99")
	cmd.Flags().StringVar(&req.Status, "status", entity.StatusNew, "Initial status")
	cmd.Flags().StringVar(&orderDate, "date", "", "Order date (RFC3339); defaults to now")
	return cmd
}

func buildOrder(req dto.OrderRequest, price, orderDate string) (*entity.Order, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	req.Price = p
	if orderDate != "" {
		t, err := time.Parse(time.RFC3339, orderDate)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", orderDate, err)
		}
		req.OrderDate = &t
	}
	return req.ToEntity(), nil
}

func withOrderService(ctx context.Context, fn func(context.Context, *ordersvc.Service) error) error {
	return withComponent(ctx, nil, fn)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
