package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/console"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/rpc/connectjson"
	turnrpc "github.com/texttoaction/tta/internal/rpc/turn"
	"github.com/texttoaction/tta/internal/sandbox"
)

var errTaskFailed = errors.New("task failed")

// NewRunCmd resolves one instruction locally or through the daemon.
func NewRunCmd(opts *Options) *cobra.Command {
	var remote bool
	var addr string
	var transport string

	cmd := &cobra.Command{
		Use:   "run \"<instruction>\"",
		Short: "Resolve one instruction and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := args[0]
			if strings.TrimSpace(instruction) == "" {
				return errors.New("instruction cannot be empty")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			renderer := console.NewRenderer(out)

			var status agent.Status
			if remote {
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if transport == "" {
					transport = cfg.Server.Transport
				}
				rt := &remoteTurn{renderer: renderer, stdout: out, stderr: cmd.ErrOrStderr()}
				req := rpc.TurnRequest{Instruction: instruction}
				baseURL := daemonURL(addr)
				switch strings.ToLower(strings.TrimSpace(transport)) {
				case "ndjson":
					err = runNDJSON(ctx, baseURL+"/turn", req, rt)
				default:
					err = runConnect(ctx, baseURL+turnrpc.ConnectPerformProcedure, req, rt)
				}
				status = rt.status
			} else {
				status, err = runLocal(ctx, cmd, cfg, instruction, renderer)
			}

			if status == agent.StatusCanceled || errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Interrupted.")
				return context.Canceled
			}
			if err != nil {
				return err
			}
			if status != agent.StatusCompleted {
				return errTaskFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Send the instruction to a running ttad instead of executing locally")
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (default: server.addr)")
	cmd.Flags().StringVar(&transport, "transport", "", "Daemon transport: connect or ndjson (default: server.transport)")
	return cmd
}

func runLocal(ctx context.Context, cmd *cobra.Command, cfg *config.Config, instruction string, renderer *console.Renderer) (agent.Status, error) {
	rt, err := newRuntime(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	defer closeRuntime(rt)

	result, err := rt.Agent.Perform(ctx, instruction, renderer, sandbox.Streams{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	return result.Status, err
}

// remoteTurn renders daemon events with the local console contract.
type remoteTurn struct {
	renderer *console.Renderer
	stdout   io.Writer
	stderr   io.Writer
	status   agent.Status
}

func (r *remoteTurn) handle(evt rpc.TurnEvent) error {
	switch evt.Type {
	case turnrpc.EventOutput:
		w := r.stdout
		if evt.Stream == "stderr" {
			w = r.stderr
		}
		_, err := io.WriteString(w, evt.Data)
		return err
	case turnrpc.EventError:
		if evt.Status == string(agent.StatusCanceled) {
			r.status = agent.StatusCanceled
			return nil
		}
		return fmt.Errorf("daemon error: %s", evt.Error)
	}

	e, ok := turnrpc.ToAgentEvent(evt)
	if !ok {
		return nil
	}
	if e.Status != "" {
		r.status = e.Status
	}
	r.renderer.Emit(e)
	return nil
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, url string, reqBody rpc.TurnRequest, rt *remoteTurn) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var evt rpc.TurnEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := rt.handle(evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, url string, reqBody rpc.TurnRequest, rt *remoteTurn) error {
	client := connect.NewClient[rpc.TurnStreamRequest, rpc.TurnEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))

	// The stream outlives ctx so the daemon can report the canceled turn.
	streamCtx, closeStream := context.WithCancel(context.Background())
	defer closeStream()
	stream := client.CallBidiStream(streamCtx)

	if err := stream.Send(&rpc.TurnStreamRequest{Turn: &reqBody}); err != nil {
		return err
	}

	finished := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = stream.Send(&rpc.TurnStreamRequest{Cancel: true})
		case <-finished:
		}
	}()

	err := receiveAll(stream, rt)
	close(finished)
	wg.Wait()

	_ = stream.CloseRequest()
	if closeErr := stream.CloseResponse(); err == nil {
		err = closeErr
	}
	return err
}

func receiveAll(stream *connect.BidiStreamForClient[rpc.TurnStreamRequest, rpc.TurnEvent], rt *remoteTurn) error {
	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := rt.handle(*evt); err != nil {
			return err
		}
	}
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
