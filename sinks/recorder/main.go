// Package main provides a recorder sink. It appends every frame it receives
// to frames.jsonl in its working directory, one JSON object per line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Rotation is a unit quaternion on the wire.
type Rotation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Request represents the input from the sink executor.
type Request struct {
	Session   string              `json:"session"`
	Sequence  int64               `json:"sequence"`
	Rotations map[string]Rotation `json:"rotations"`
	Root      [3]float64          `json:"root"`
	Unmapped  []string            `json:"unmapped,omitempty"`
}

// Response represents the output to the sink executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const outputFile = "frames.jsonl"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Session == "" {
		writeErrorResponse("session is required")
		return
	}

	if err := appendFrame(req); err != nil {
		writeErrorResponse(fmt.Sprintf("record frame %d: %v", req.Sequence, err))
		return
	}

	writeSuccessResponse(len(req.Rotations))
}

// appendFrame writes the request as one line of the output file.
func appendFrame(req Request) error {
	f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(req)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(bones int) {
	data, _ := json.Marshal(map[string]int{"bones": bones})
	resp := Response{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
