package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/profitboard/internal/app"
	"github.com/odyssey-erp/profitboard/internal/auth"
	"github.com/odyssey-erp/profitboard/jobs"
)

// Deps are the collaborators the commands reach for. Tests swap them out.
type Deps struct {
	Stdin      io.Reader
	LoadConfig func() (*app.Config, error)
	Jobs       func(redisAddr string) *JobsCLI
}

func (d Deps) withDefaults() Deps {
	if d.Stdin == nil {
		d.Stdin = strings.NewReader("")
	}
	if d.LoadConfig == nil {
		d.LoadConfig = app.LoadConfig
	}
	if d.Jobs == nil {
		d.Jobs = NewJobsCLI
	}
	return d
}

// NewRootCommand assembles the profitctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	deps = deps.withDefaults()
	root := &cobra.Command{
		Use:           "profitctl",
		Short:         "Operational helpers for the profitability dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newHashPasswordCommand(deps),
		newCheckConfigCommand(deps),
		newUsersCommand(),
		newJobsCommand(deps),
	)
	return root
}

func newHashPasswordCommand(deps Deps) *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Long: `Read a single password line from stdin and print the bcrypt hash to
paste into the credentials file:

  printf '%s' 'correct horse' | profitctl hash-password`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(deps.Stdin).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("hash-password: empty password on stdin")
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	return cmd
}

func newCheckConfigCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the environment and the credentials file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			repo, err := auth.LoadCredentialsFile(cfg.AuthCredentialsFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "env:           %s\n", cfg.AppEnv)
			fmt.Fprintf(out, "schema:        %s\n", cfg.DBSchema)
			fmt.Fprintf(out, "cache:         %s (ttl %s)\n", cfg.CacheBackend, cfg.CacheTTL)
			fmt.Fprintf(out, "session ttl:   %s\n", cfg.SessionTTL())
			fmt.Fprintf(out, "accounts:      %d\n", len(repo.Usernames()))
			fmt.Fprintln(out, "configuration ok")
			return nil
		},
	}
}

func newUsersCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List the accounts in a credentials file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := auth.LoadCredentialsFile(file)
			if err != nil {
				return err
			}
			for _, name := range repo.Usernames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the credentials YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newJobsCommand(deps Deps) *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", "127.0.0.1:6379", "Redis address of the job queue")

	var payload jobs.WarmupPayload
	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Enqueue a result cache warm-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := deps.Jobs(redisAddr)
			defer c.Close()
			info, err := c.TriggerWarmup(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	warmup.Flags().IntVar(&payload.WindowDays, "window-days", 30, "days in the default range")
	warmup.Flags().IntVar(&payload.TopSKULimit, "top-skus", 25, "top SKU limit to warm")
	warmup.Flags().IntVar(&payload.PageSize, "page-size", 50, "detail page size to warm")
	warmup.Flags().BoolVar(&payload.PerMarketplace, "per-marketplace", false, "also warm each marketplace on its own")

	var asJSON bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := deps.Jobs(redisAddr)
			defer c.Close()
			s, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(s)
			}
			fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
			return nil
		},
	}
	stats.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := deps.Jobs(redisAddr)
			defer c.Close()
			tasks, err := c.ListScheduled(cmd.Context(), size)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
	scheduled.Flags().IntVar(&size, "limit", 10, "maximum tasks to list")

	cmd.AddCommand(warmup, stats, scheduled)
	return cmd
}
