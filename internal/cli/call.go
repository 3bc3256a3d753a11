package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harun/erigo/internal/config"
	"github.com/harun/erigo/pkg/command"
	"github.com/harun/erigo/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cliUser is the identity used for one-shot calls with inline credentials
const cliUser = "cli"

type callOptions struct {
	apiKey   string
	username string
	password string
	as       string
}

var callOpts callOptions

var esCmd = &cobra.Command{
	Use:   "es <action> </resource> [params]",
	Short: "Call the Erigones SDDC API once",
	Long: `Call the Erigones SDDC API once and print the JSON result.

Credentials are taken from --api-key or --username/--password, or from the
stored credentials of a bot user with --as (for example --as tg:12345).`,
	Example: `  erigo es get /vm --api-key KEY
  erigo es create /vm/web01/status/start --as tg:12345`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, command.ES, args)
	},
}

var vmCmd = &cobra.Command{
	Use:   "vm [dc]",
	Short: "List servers in a datacenter",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, command.VM, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{esCmd, vmCmd} {
		c.Flags().StringVar(&callOpts.apiKey, "api-key", "", "API key to sign in with")
		c.Flags().StringVar(&callOpts.username, "username", "", "username to sign in with")
		c.Flags().StringVar(&callOpts.password, "password", "", "password to sign in with")
		c.Flags().StringVar(&callOpts.as, "as", "", "use the stored credentials of this user")
		c.MarkFlagsMutuallyExclusive("api-key", "username")
		c.MarkFlagsMutuallyExclusive("api-key", "as")
		c.MarkFlagsMutuallyExclusive("username", "as")
		c.MarkFlagsRequiredTogether("username", "password")
		rootCmd.AddCommand(c)
	}
}

func runCall(cmd *cobra.Command, name string, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	out, err := callOnce(cmd.Context(), cfg, log.GetZerolog(), callOpts, name, args, cmd.ErrOrStderr())
	if err != nil {
		return errors.New(command.Message(err, cfg.API.URL))
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// callOnce signs in when needed, runs a single command and returns its output.
// Progress notices such as pending tasks are written to progress.
func callOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts callOptions, name string, args []string, progress io.Writer) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		a    *app
		user string
		err  error
	)

	switch {
	case opts.as != "":
		a, err = openApp(cfg, logger)
		if err != nil {
			return "", err
		}
		user = opts.as
	default:
		cred, err := inlineCredential(opts)
		if err != nil {
			return "", err
		}
		a, err = newApp(cfg, credentials.NewMemoryBackend(), logger)
		if err != nil {
			return "", err
		}
		user = cliUser
		if err := a.manager.Login(ctx, user, cred); err != nil {
			a.Close()
			return "", err
		}
	}
	defer a.Close()

	run := a.commands.VM
	if name == command.ES {
		run = a.commands.ES
	}

	return run(ctx, command.Call{
		User: user,
		Args: args,
		Notify: func(text string) {
			fmt.Fprintln(progress, text)
		},
	})
}

func inlineCredential(opts callOptions) (credentials.Credential, error) {
	switch {
	case opts.apiKey != "":
		return credentials.NewAPIKey(opts.apiKey), nil
	case opts.username != "":
		return credentials.NewPassword(opts.username, opts.password), nil
	}
	return credentials.Credential{}, fmt.Errorf("credentials required: use --api-key, --username and --password, or --as")
}
