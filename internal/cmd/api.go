package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

var apiCmd = &cobra.Command{
	Use:   "api <method> <path>",
	Short: "Send an authenticated request to the backend",
	Long: `Send a request through the session transport and print the response
body. The stored access token is attached, and a 401 triggers one refresh
followed by one replay, as for every other command.

Examples:
  devquote api GET /tasks?page=0&size=5
  devquote api PUT /projects/3 --data '{"name":"Portal"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runAPI,
}

var apiData string

var apiMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

func init() {
	apiCmd.Flags().StringVarP(&apiData, "data", "d", "", "JSON request body")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	if !slices.Contains(apiMethods, method) {
		return errors.NewValidationError("method", fmt.Sprintf("%q must be one of %s", args[0], strings.Join(apiMethods, ", ")))
	}

	req := &api.Request{Method: method, Path: args[1]}
	if apiData != "" {
		if !json.Valid([]byte(apiData)) {
			return errors.NewValidationError("data", "is not valid JSON")
		}
		req.Body = json.RawMessage(apiData)
	}

	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	resp, err := a.Doer().Do(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bytes.TrimSpace(resp.Data)) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
		_, err = out.Write(resp.Data)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}
