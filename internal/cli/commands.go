package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Context struct {
	Client *Client
	Output Format
	Out    io.Writer
	Err    io.Writer
}

func Usage(w io.Writer) {
	fmt.Fprint(w, `kuberafictl <command> [args] [flags]

Global Flags:
  --api-base    Service base URL (env: KRF_API_BASE)
  --token       Bearer token (env: KRF_TOKEN)
  --output      json|text (default json)

Commands:
  settle <order-id>                 settle an order inline
  complete <order-id>               complete an order (sync or async per server mode)
  cancel <order-id> [--reason]      cancel an order
  fail <order-id> [--reason]        mark an order failed
  balance --operator N [--payment-method N --currency C]
  movement --operator N --payment-method N --currency C --type deposit|withdrawal|adjustment --amount X
  entries --operator N [--payment-method N] [--currency C] [--reference-type T] [--limit N]
  verify <balance-id>               replay a balance's entries
  commission list|approve|reject|cancel|pay
  payment-method list|default|activate|deactivate
`)
}

func Dispatch(ctx context.Context, c Context, args []string) error {
	if len(args) == 0 {
		Usage(c.Err)
		return errors.New("missing command")
	}
	switch args[0] {
	case "settle":
		return orderAction(ctx, c, "settle", args[1:], false)
	case "complete":
		return orderAction(ctx, c, "complete", args[1:], false)
	case "cancel":
		return orderAction(ctx, c, "cancel", args[1:], true)
	case "fail":
		return orderAction(ctx, c, "fail", args[1:], true)
	case "balance":
		return balanceCmd(ctx, c, args[1:])
	case "movement":
		return movementCmd(ctx, c, args[1:])
	case "entries":
		return entriesCmd(ctx, c, args[1:])
	case "verify":
		id, err := positionalID(args[1:], "verify <balance-id>")
		if err != nil {
			return err
		}
		return c.call(ctx, http.MethodGet, fmt.Sprintf("/api/v1/balances/%d/verify", id), nil)
	case "commission":
		return commissionCmd(ctx, c, args[1:])
	case "payment-method":
		return paymentMethodCmd(ctx, c, args[1:])
	case "help", "-h", "--help":
		Usage(c.Out)
		return nil
	default:
		Usage(c.Err)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (c Context) call(ctx context.Context, method, path string, body any) error {
	resp, err := c.Client.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return Write(c.Out, c.Output, resp.Data)
}

func positionalID(args []string, usage string) (uint64, error) {
	if len(args) == 0 {
		return 0, errors.New("usage: kuberafictl " + usage)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func newFlagSet(c Context, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("kuberafictl "+name, flag.ContinueOnError)
	fs.SetOutput(c.Err)
	return fs
}

func orderAction(ctx context.Context, c Context, action string, args []string, withReason bool) error {
	id, err := positionalID(args, action+" <order-id>")
	if err != nil {
		return err
	}
	fs := newFlagSet(c, action)
	reason := fs.String("reason", "", "reason recorded on the order")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	var body any
	if withReason && strings.TrimSpace(*reason) != "" {
		body = map[string]string{"reason": strings.TrimSpace(*reason)}
	}
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/%s", id, action), body)
}

func balanceCmd(ctx context.Context, c Context, args []string) error {
	fs := newFlagSet(c, "balance")
	operator := fs.Uint64("operator", 0, "operator id")
	pm := fs.Uint64("payment-method", 0, "payment method id")
	currency := fs.String("currency", "", "ISO currency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == 0 {
		return errors.New("--operator is required")
	}
	path := fmt.Sprintf("/api/v1/operators/%d/balances", *operator)
	q := url.Values{}
	if *pm > 0 {
		q.Set("payment_method_id", strconv.FormatUint(*pm, 10))
	}
	if strings.TrimSpace(*currency) != "" {
		q.Set("currency", strings.ToUpper(strings.TrimSpace(*currency)))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.call(ctx, http.MethodGet, path, nil)
}

func movementCmd(ctx context.Context, c Context, args []string) error {
	fs := newFlagSet(c, "movement")
	operator := fs.Uint64("operator", 0, "operator id")
	pm := fs.Uint64("payment-method", 0, "payment method id")
	currency := fs.String("currency", "", "ISO currency")
	kind := fs.String("type", "", "deposit|withdrawal|adjustment")
	amount := fs.String("amount", "", "decimal amount; adjustments keep their sign")
	description := fs.String("description", "", "free text")
	reference := fs.String("reference", "", "reference id (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == 0 || *pm == 0 || strings.TrimSpace(*amount) == "" || strings.TrimSpace(*kind) == "" {
		return errors.New("--operator, --payment-method, --type and --amount are required")
	}
	ref := strings.TrimSpace(*reference)
	if ref == "" {
		ref = uuid.NewString()
	}
	body := map[string]any{
		"payment_method_id": *pm,
		"currency":          strings.ToUpper(strings.TrimSpace(*currency)),
		"type":              strings.ToLower(strings.TrimSpace(*kind)),
		"amount":            strings.TrimSpace(*amount),
		"description":       *description,
		"reference_id":      ref,
	}
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/api/v1/operators/%d/movements", *operator), body)
}

func entriesCmd(ctx context.Context, c Context, args []string) error {
	fs := newFlagSet(c, "entries")
	operator := fs.Uint64("operator", 0, "operator id")
	pm := fs.Uint64("payment-method", 0, "payment method id")
	currency := fs.String("currency", "", "ISO currency")
	refType := fs.String("reference-type", "", "order_in|order_out|manual_deposit|manual_withdrawal|adjustment")
	refID := fs.String("reference", "", "reference id")
	limit := fs.Int("limit", 50, "limit")
	offset := fs.Int("offset", 0, "offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *operator == 0 {
		return errors.New("--operator is required")
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	q.Set("offset", strconv.Itoa(*offset))
	if *pm > 0 {
		q.Set("payment_method_id", strconv.FormatUint(*pm, 10))
	}
	if v := strings.TrimSpace(*currency); v != "" {
		q.Set("currency", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(*refType); v != "" {
		q.Set("reference_type", v)
	}
	if v := strings.TrimSpace(*refID); v != "" {
		q.Set("reference_id", v)
	}
	return c.call(ctx, http.MethodGet, fmt.Sprintf("/api/v1/operators/%d/ledger-entries?%s", *operator, q.Encode()), nil)
}

func commissionCmd(ctx context.Context, c Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: kuberafictl commission list|approve|reject|cancel|pay")
	}
	op := strings.ToLower(strings.TrimSpace(args[0]))
	switch op {
	case "list":
		fs := newFlagSet(c, "commission list")
		status := fs.String("status", "", "pending|approved|paid|rejected|cancelled")
		order := fs.Uint64("order", 0, "order id")
		house := fs.Uint64("house", 0, "exchange house id")
		limit := fs.Int("limit", 50, "limit")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		q := url.Values{}
		q.Set("limit", strconv.Itoa(*limit))
		if v := strings.TrimSpace(*status); v != "" {
			q.Set("status", v)
		}
		if *order > 0 {
			q.Set("order_id", strconv.FormatUint(*order, 10))
		}
		if *house > 0 {
			q.Set("exchange_house_id", strconv.FormatUint(*house, 10))
		}
		return c.call(ctx, http.MethodGet, "/api/v1/commissions?"+q.Encode(), nil)
	case "approve", "reject", "cancel", "pay":
		id, err := positionalID(args[1:], "commission "+op+" <id>")
		if err != nil {
			return err
		}
		fs := newFlagSet(c, "commission "+op)
		notes := fs.String("notes", "", "notes")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		var body any
		if strings.TrimSpace(*notes) != "" {
			body = map[string]string{"notes": strings.TrimSpace(*notes)}
		}
		return c.call(ctx, http.MethodPost, fmt.Sprintf("/api/v1/commissions/%d/%s", id, op), body)
	default:
		return fmt.Errorf("unknown commission operation: %s", op)
	}
}

func paymentMethodCmd(ctx context.Context, c Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: kuberafictl payment-method list|default|activate|deactivate")
	}
	op := strings.ToLower(strings.TrimSpace(args[0]))
	switch op {
	case "list":
		fs := newFlagSet(c, "payment-method list")
		house := fs.Uint64("house", 0, "exchange house id")
		currency := fs.String("currency", "", "ISO currency")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		q := url.Values{}
		if *house > 0 {
			q.Set("exchange_house_id", strconv.FormatUint(*house, 10))
		}
		if v := strings.TrimSpace(*currency); v != "" {
			q.Set("currency", strings.ToUpper(v))
		}
		path := "/api/v1/payment-methods"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return c.call(ctx, http.MethodGet, path, nil)
	case "default", "activate", "deactivate":
		id, err := positionalID(args[1:], "payment-method "+op+" <id>")
		if err != nil {
			return err
		}
		return c.call(ctx, http.MethodPost, fmt.Sprintf("/api/v1/payment-methods/%d/%s", id, op), nil)
	default:
		return fmt.Errorf("unknown payment-method operation: %s", op)
	}
}
