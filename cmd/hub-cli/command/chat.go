package command

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"sockethub/internal/hub"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the hub and chat interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat() error {
	header := http.Header{}
	if token != "" {
		header.Add("Authorization", "Bearer "+token)
	}

	fmt.Printf("Connecting to %s...\n", serverURL)
	conn, err := hub.Dial(serverURL, hub.DialOptions{Header: header})
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	done := make(chan struct{})
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// register handlers before Start so the greeting is not missed
	conn.OnType(hub.GreetingType, func(data map[string]any) {
		fmt.Printf("Connected, assigned id %v\n", data["id"])
	})
	conn.OnType("chat", func(data map[string]any) {
		fmt.Printf("[%v] %v\n", data["from"], data["text"])
	})
	conn.OnType("error", func(data map[string]any) {
		fmt.Printf("server error: %v\n", data["message"])
	})
	conn.OnError(func(err error) {
		fmt.Println("error:", err)
	})
	conn.OnClose(func(code int, reason string) {
		fmt.Printf("connection closed (%d %s)\n", code, reason)
		close(done)
	})
	conn.Start()

	// read stdin lines into chat envelopes
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := scanner.Text()
			if text == "/quit" {
				interrupt <- os.Interrupt
				return
			}
			if text == "" {
				continue
			}
			if err := conn.SendType("chat", map[string]any{"text": text}); err != nil {
				fmt.Println("send failed:", err)
				return
			}
		}
	}()

	select {
	case <-interrupt:
		fmt.Println("Closing connection...")
		conn.Close(websocket.CloseNormalClosure, "bye")
		<-done
	case <-done:
	}
	return nil
}
