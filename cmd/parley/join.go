package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/internal/replication"
	"github.com/aretw0/parley/pkg/adapters/websocket"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join <graph>",
	Short: "Follow a session owned by a remote server",
	Long: `Connects to the WebSocket endpoint of "parley serve" as a peer. The session
is mirrored locally and every choice is forwarded to the server. Graphs and
rows are read from the local repository to label options.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		url, _ := cmd.Flags().GetString("url")
		sessionID, _ := cmd.Flags().GetString("session")
		start, _ := cmd.Flags().GetBool("start")
		player, _ := cmd.Flags().GetString("player")
		with, _ := cmd.Flags().GetString("with")

		eng, err := newEngine(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		g, err := eng.Graph(ctx, args[0])
		if err != nil {
			return err
		}

		client, err := websocket.Dial(ctx, url, sessionID, websocket.WithClientLogger(logger))
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		widgetOpts := []tui.WidgetOption{tui.WithSkipHint()}
		if !isTerminal(out) {
			widgetOpts = append(widgetOpts, tui.WithRenderer(tui.PlainRenderer), tui.WithProfile(termenv.Ascii))
		}
		widget := tui.NewWidget("peer", out, g, eng.Rows(), widgetOpts...)

		closed := make(chan struct{}, 1)
		peer := replication.NewPeer(client, sessionID,
			replication.WithPeerLogger(logger),
			replication.WithRows(eng.Rows()),
			replication.WithRetry(cfg.Replication.PeerRetryLimit, cfg.Replication.RetryInterval),
			replication.WithWidget(widget),
			replication.WithPeerHooks(domain.LifecycleHooks{
				OnDialogueClosed: func(context.Context, *domain.Event) {
					select {
					case closed <- struct{}{}:
					default:
					}
				},
			}),
		)
		defer peer.Shutdown()

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := peer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("peer stopped", "session_id", sessionID, "err", err)
			}
			cancel()
		}()
		go func() {
			select {
			case <-client.Done():
				cancel()
			case <-runCtx.Done():
			}
		}()

		if start {
			if err := peer.Start(ctx, g.Name, player, with); err != nil {
				return err
			}
		}
		return playLoop(runCtx, cmd.InOrStdin(), cmd.ErrOrStderr(), peer, widget, closed)
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().String("url", "ws://localhost:8080/ws", "WebSocket endpoint of the server")
	joinCmd.Flags().String("session", "default", "Session to follow")
	joinCmd.Flags().Bool("start", false, "Ask the server to start the dialogue")
	joinCmd.Flags().String("player", "player", "Participant id of the player")
	joinCmd.Flags().String("with", "npc", "Participant id the player talks to")
}
