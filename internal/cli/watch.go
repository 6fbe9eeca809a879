package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Watch a session's frame stream in real time",
		Long: `Connect to the session's websocket endpoint and stream frames as they
arrive.

Frames include:
  - state: Full session snapshot (sent on connect and on status changes)
  - move: A move forwarded from the other player
  - resign: The other player resigned
  - error: A rejected frame

Moves can be played by typing them on stdin, one per line:

  e2 e4        play a move
  e2 e4 P      play a move with an explicit piece
  resign       resign the session

Only session participants may connect. Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchSession(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output frames as JSON lines")

	return cmd
}

// WatchedFrame is a frame annotated with its arrival time. The same shape
// goes back out for frames typed on stdin, with the time left zero.
type WatchedFrame struct {
	Time    time.Time       `json:"time,omitzero"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func watchSession(sessionID string, jsonOutput bool) error {
	url := websocketURL(cfg.ServerURL, sessionID)

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Handle interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	if !jsonOutput {
		fmt.Printf("Watching session %s\n", sessionID)
	}

	go sendFromStdin(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if !jsonOutput {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}

		var frame WatchedFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		frame.Time = time.Now()
		printFrame(frame, jsonOutput)
	}
}

// sendFromStdin reads commands from stdin and writes move/resign frames
func sendFromStdin(ctx context.Context, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		var outbound WatchedFrame
		switch {
		case len(fields) == 0:
			continue
		case len(fields) == 1 && fields[0] == "resign":
			outbound.Type = "resign"
		case len(fields) == 2 || len(fields) == 3:
			move := map[string]string{"from": fields[0], "to": fields[1]}
			if len(fields) == 3 {
				move["piece"] = fields[2]
			}
			payload, _ := json.Marshal(move)
			outbound.Type = "move"
			outbound.Payload = payload
		default:
			fmt.Fprintln(os.Stderr, "usage: <from> <to> [piece] | resign")
			continue
		}

		data, _ := json.Marshal(outbound)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func websocketURL(serverURL, sessionID string) string {
	base := strings.TrimSuffix(serverURL, "/")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/api/v1/sessions/" + sessionID + "/ws"
}

func printFrame(frame WatchedFrame, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(frame)
		fmt.Println(string(data))
		return
	}

	timestamp := frame.Time.Format("2006-01-02 15:04:05")
	display := string(frame.Payload)
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	fmt.Printf("[%s] %s: %s\n", timestamp, frame.Type, display)
}
