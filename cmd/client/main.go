package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/betairc/internal/client"
	logpkg "github.com/vovakirdan/betairc/internal/log"
	"github.com/vovakirdan/betairc/internal/proto"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		savePath   string
		logLevel   string
		flagCfg    client.Config
	)

	cmd := &cobra.Command{
		Use:          "betairc",
		Short:        "Terminal client for a BetaIRC server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg := client.DefaultConfig()
			if configPath != "" {
				loaded, err := client.LoadConfig(configPath)
				if err != nil {
					fmt.Fprintf(out, "Error loading config file: %v\n", err)
				} else {
					cfg = loaded
					fmt.Fprintf(out, "Loaded connection details from %s\n", configPath)
				}
			}
			if cmd.Flags().Changed("server") {
				cfg.Server = flagCfg.Server
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = flagCfg.Port
			}
			if cmd.Flags().Changed("username") {
				cfg.Username = flagCfg.Username
			}

			input := bufio.NewScanner(cmd.InOrStdin())
			for !proto.ValidUsername(cfg.Username) {
				fmt.Fprint(out, "Enter your username (3-16 alphanumeric characters or underscores): ")
				if !input.Scan() {
					return io.ErrUnexpectedEOF
				}
				cfg.Username = strings.TrimSpace(input.Text())
			}

			if savePath != "" {
				if err := client.SaveConfig(savePath, cfg); err != nil {
					fmt.Fprintf(out, "Error saving config file: %v\n", err)
				} else {
					fmt.Fprintf(out, "Connection details saved to %s\n", savePath)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "Connecting to %s as %s...\n", cfg.Addr(), cfg.Username)
			session, err := client.Dial(ctx, cfg.Addr(), cfg.Username, out, logpkg.New(logLevel))
			if err != nil {
				return err
			}
			defer session.Close()
			fmt.Fprintln(out, "Connected to server! Type /help for available commands.")

			received := make(chan error, 1)
			go func() { received <- session.Receive() }()

			lines := make(chan string)
			go func() {
				defer close(lines)
				for input.Scan() {
					lines <- input.Text()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "Disconnecting...")
					return nil
				case err := <-received:
					fmt.Fprintln(out, "Disconnected. Goodbye!")
					return err
				case text, ok := <-lines:
					if !ok {
						return nil
					}
					quit, err := session.HandleInput(text)
					if err != nil {
						fmt.Fprintf(out, "Error sending message: %v\n", err)
					}
					if quit {
						fmt.Fprintln(out, "Disconnected. Goodbye!")
						return nil
					}
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&flagCfg.Server, "server", "s", "", "server address (default 127.0.0.1)")
	flags.IntVarP(&flagCfg.Port, "port", "p", 6969, "server port")
	flags.StringVarP(&flagCfg.Username, "username", "u", "", "your username")
	flags.StringVarP(&configPath, "config", "c", "", "load connection details from a config file")
	flags.StringVar(&savePath, "save-config", "", "save connection details to a config file")
	flags.StringVar(&logLevel, "log-level", "error", "client log level")

	return cmd
}
