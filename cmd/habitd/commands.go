package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// sendCmd posts one update to a running server and prints the replies. It
// doubles as a local test console: the chat relay speaks the same endpoint.
var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message to a running habitd server as a given user",
	Long: `Send a message to a running habitd server as a given user.

Examples:
  habitd send --user 1 "/start"
  habitd send --user 1 "/habits"
  habitd send --user 1 --voice clip.ogg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		voicePath, _ := cmd.Flags().GetString("voice")
		callback, _ := cmd.Flags().GetString("callback")

		if userID == 0 {
			return fmt.Errorf("--user is required")
		}
		text := strings.Join(args, " ")
		if text == "" && voicePath == "" && callback == "" {
			return fmt.Errorf("nothing to send: give message text, --voice, or --callback")
		}

		req := map[string]any{
			"user_id": userID,
		}
		if text != "" {
			req["text"] = text
		}
		if callback != "" {
			req["callback"] = callback
		}
		if voicePath != "" {
			data, err := os.ReadFile(voicePath)
			if err != nil {
				return fmt.Errorf("reading voice file: %w", err)
			}
			format := strings.TrimPrefix(strings.ToLower(filepath.Ext(voicePath)), ".")
			req["voice"] = map[string]any{
				"data":   base64.StdEncoding.EncodeToString(data),
				"format": format,
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/v1/updates", req)
		if err != nil {
			return err
		}

		var result struct {
			Replies []struct {
				Text string `json:"text"`
			} `json:"replies"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, r := range result.Replies {
			fmt.Println(r.Text)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().Int64("user", 0, "numeric user id to send as")
	sendCmd.Flags().String("voice", "", "path to an audio file to send as a voice message")
	sendCmd.Flags().String("callback", "", "callback payload to send instead of text")
}
