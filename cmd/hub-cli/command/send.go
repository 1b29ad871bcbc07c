package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"sockethub/internal/hub"
)

var sendData string

var sendCmd = &cobra.Command{
	Use:   "send <type>",
	Short: "Send one typed message and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(args[0])
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendData, "data", "{}", "message data as a JSON object")
	rootCmd.AddCommand(sendCmd)
}

func runSend(msgType string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(sendData), &data); err != nil {
		return fmt.Errorf("--data must be a JSON object: %w", err)
	}

	header := http.Header{}
	if token != "" {
		header.Add("Authorization", "Bearer "+token)
	}
	conn, err := hub.Dial(serverURL, hub.DialOptions{Header: header})
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	if err := conn.SendType(msgType, data); err != nil {
		return err
	}
	// give the write pump a moment to flush before the close frame
	time.Sleep(100 * time.Millisecond)
	fmt.Printf("sent %q\n", msgType)
	return nil
}
