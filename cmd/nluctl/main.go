// Command nluctl runs single NLU operations from the shell, either in process
// or against a running nlu service over NATS.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"sales-nlu/internal/app"
	"sales-nlu/internal/domain"
	"sales-nlu/internal/nlp"
	"sales-nlu/internal/queue"
)

// caller runs one operation and returns its JSON result.
type caller interface {
	Call(ctx context.Context, op nlp.Operation, req any) (json.RawMessage, error)
	Status() (nlp.Status, error)
	Close()
}

// connectFunc builds the caller for a command invocation.
type connectFunc func(ctx context.Context, natsURL string) (caller, error)

type options struct {
	natsURL string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(connect connectFunc) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "nluctl",
		Short:        "Run sales NLU operations",
		Long:         `nluctl runs the sales funnel NLU operations once and prints the JSON result.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.natsURL, "nats", "", "NATS URL of a running nlu service (default: run in process)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "overall timeout")

	root.AddCommand(
		messageCmd(connect, opts, "profile", "Extract who the lessons are for and their age", nlp.OpExtractInitialProfile),
		messageCmd(connect, opts, "intent", "Classify a reply as affirmative or negative", nlp.OpClassifyIntent),
		messageCmd(connect, opts, "schedule", "Extract phone, day and time for a trial lesson", nlp.OpExtractSchedulingData),
		recommendCmd(connect, opts),
		pitchCmd(connect, opts),
		statusCmd(connect, opts),
	)
	return root
}

func messageCmd(connect connectFunc, opts *options, use, short string, op nlp.Operation) *cobra.Command {
	return &cobra.Command{
		Use:   use + " MESSAGE...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := nlp.MessageRequest{Message: strings.Join(args, " ")}
			return runOperation(cmd, connect, opts, op, req)
		},
	}
}

func recommendCmd(connect connectFunc, opts *options) *cobra.Command {
	var profile domain.FullUserProfile
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a plan tier for a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, connect, opts, nlp.OpRecommendPlan, nlp.ProfileRequest{Profile: profile})
		},
	}
	profileFlags(cmd, &profile)
	return cmd
}

func pitchCmd(connect connectFunc, opts *options) *cobra.Command {
	var (
		profile domain.FullUserProfile
		plan    domain.Plan
		tier    string
	)
	cmd := &cobra.Command{
		Use:   "pitch",
		Short: "Write a sales pitch for a profile and plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan.Tier = domain.PlanTier(tier)
			return runOperation(cmd, connect, opts, nlp.OpGenerateSalesPitch, nlp.PitchRequest{Profile: profile, Plan: plan})
		},
	}
	profileFlags(cmd, &profile)
	cmd.Flags().StringVar(&plan.Name, "plan-name", "", "plan name")
	cmd.Flags().StringVar(&plan.Description, "plan-description", "", "plan description")
	cmd.Flags().Float64Var(&plan.Price, "plan-price", 0, "monthly price")
	cmd.Flags().StringVar(&tier, "plan-tier", "", "plan tier (basic, intermediate, advanced)")
	_ = cmd.MarkFlagRequired("plan-name")
	_ = cmd.MarkFlagRequired("plan-price")
	return cmd
}

func profileFlags(cmd *cobra.Command, p *domain.FullUserProfile) {
	f := cmd.Flags()
	f.StringVar(&p.ForWhom, "for-whom", "", "who the lessons are for")
	f.IntVar(&p.Age, "age", 0, "age of the student")
	f.StringVar(&p.Instrument, "instrument", "", "instrument of interest")
	f.StringVar(&p.Experience, "experience", "", "prior musical experience")
	f.StringVar(&p.Motivation, "motivation", "", "why they want lessons")
	f.StringVar(&p.Goals, "goals", "", "what they want to achieve")
	f.StringVar(&p.TimeAvailability, "availability", "", "weekly time available")
	_ = cmd.MarkFlagRequired("for-whom")
	_ = cmd.MarkFlagRequired("age")
}

func statusCmd(connect connectFunc, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved model provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmdContext(cmd), opts.natsURL)
			if err != nil {
				return err
			}
			defer c.Close()
			st, err := c.Status()
			if err != nil {
				return err
			}
			raw, err := json.Marshal(st)
			if err != nil {
				return err
			}
			return printJSON(cmd, raw)
		},
	}
}

func runOperation(cmd *cobra.Command, connect connectFunc, opts *options, op nlp.Operation, req any) error {
	ctx, cancel := context.WithTimeout(cmdContext(cmd), opts.timeout)
	defer cancel()

	c, err := connect(ctx, opts.natsURL)
	if err != nil {
		return err
	}
	defer c.Close()

	raw, err := c.Call(ctx, op, req)
	if err != nil {
		return err
	}
	return printJSON(cmd, raw)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(out.Bytes())
	return err
}

func connect(ctx context.Context, natsURL string) (caller, error) {
	if natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name("nluctl"))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		return &remoteCaller{nc: nc}, nil
	}
	deps, err := app.Build(ctx, "nluctl")
	if err != nil {
		return nil, err
	}
	return &localCaller{
		ext:      deps.Service,
		validate: deps.Validator,
		status:   deps.Service.Status,
		close:    deps.Close,
	}, nil
}

type localCaller struct {
	ext      nlp.Extractor
	validate *validator.Validate
	status   func() nlp.Status
	close    func()
}

func (c *localCaller) Call(ctx context.Context, op nlp.Operation, req any) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	result, err := nlp.Invoke(ctx, c.ext, c.validate, op, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (c *localCaller) Status() (nlp.Status, error) { return c.status(), nil }
func (c *localCaller) Close()                      { c.close() }

type remoteCaller struct {
	nc *nats.Conn
}

func (c *remoteCaller) Call(ctx context.Context, op nlp.Operation, req any) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := queue.Request(ctx, c.nc, queue.Subject(op), payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *remoteCaller) Status() (nlp.Status, error) {
	return nlp.Status{}, fmt.Errorf("status is only available in process; query GET /api/status on the service")
}

func (c *remoteCaller) Close() { c.nc.Close() }
