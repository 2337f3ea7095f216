package util

import (
	"encoding/json"
	"io"
	"os"
)

// JSONOutput provides structured output for CLI operations
type JSONOutput struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// PrintJSON outputs data as formatted JSON
func PrintJSON(data interface{}) error {
	return WriteJSON(os.Stdout, data)
}

// WriteJSON writes data as indented JSON to w
func WriteJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// PrintJSONError outputs an error in JSON format
func PrintJSONError(err error) {
	output := JSONOutput{
		Success: false,
		Error:   err.Error(),
	}
	json.NewEncoder(os.Stdout).Encode(output)
}

// PrintJSONSuccess outputs success data in JSON format
func PrintJSONSuccess(data interface{}) {
	output := JSONOutput{
		Success: true,
		Data:    map[string]interface{}{"result": data},
	}
	WriteJSON(os.Stdout, output)
}
