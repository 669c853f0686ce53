package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/clock"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:   "play <graph>",
	Short: "Play a dialogue in the terminal",
	Long: `Runs a dialogue locally. Type the number of an option to pick it,
press enter to skip the current line and type "q" to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		player, _ := cmd.Flags().GetString("player")
		with, _ := cmd.Flags().GetString("with")

		closed := make(chan struct{}, 1)
		eng, err := newEngine(cfg, logger, parley.WithLifecycleHooks(domain.LifecycleHooks{
			OnDialogueClosed: func(context.Context, *domain.Event) {
				select {
				case closed <- struct{}{}:
				default:
				}
			},
		}))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		g, err := eng.Graph(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		widgetOpts := []tui.WidgetOption{tui.WithSkipHint()}
		if !isTerminal(out) {
			widgetOpts = append(widgetOpts, tui.WithRenderer(tui.PlainRenderer), tui.WithProfile(termenv.Ascii))
		} else {
			tui.PrintBanner(out, strings.TrimSpace(parley.Version))
		}
		widget := tui.NewWidget("terminal", out, g, eng.Rows(), widgetOpts...)

		sched := clock.New()
		defer sched.Stop()
		mgr := eng.NewManager(sched, runtime.WithName("terminal"))
		mgr.RegisterWidget(ctx, widget)

		if err := mgr.Start(ctx, parley.StartRequest{
			Graph:     g,
			GraphName: g.Name,
			Initiator: memory.NewParticipant(player),
			Main:      memory.NewParticipant(with),
		}); err != nil {
			return err
		}
		defer func() { _ = mgr.Close(context.Background()) }()

		return playLoop(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), localControls{mgr}, widget, closed)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("player", "player", "Participant id of the player")
	playCmd.Flags().String("with", "npc", "Participant id the player talks to")
}

// controls is what a terminal player can do to a session, locally or through a peer.
type controls interface {
	Select(ctx context.Context, node domain.GUID) error
	Skip(ctx context.Context) error
	Close(ctx context.Context) error
}

type localControls struct {
	*parley.Manager
}

func (c localControls) Select(ctx context.Context, node domain.GUID) error {
	return c.SelectNode(ctx, node)
}

// playLoop feeds stdin lines to c until the dialogue closes.
func playLoop(ctx context.Context, in io.Reader, errOut io.Writer, c controls, widget *tui.Widget, closed <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "q", "quit", "exit":
				return c.Close(ctx)
			case "":
				if err := c.Skip(ctx); err != nil {
					fmt.Fprintf(errOut, "cannot skip: %v\n", err)
				}
				continue
			}
			n, err := strconv.Atoi(line)
			options := widget.Options()
			if err != nil || n < 1 || n > len(options) {
				fmt.Fprintf(errOut, "pick one of the %d options\n", len(options))
				continue
			}
			if err := c.Select(ctx, options[n-1]); err != nil {
				fmt.Fprintf(errOut, "cannot select: %v\n", err)
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
