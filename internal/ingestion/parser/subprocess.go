package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aquib-J/mysecondbrain-backend/internal/domain"
	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/envutil"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

// SubprocessRunner invokes the external document processor:
//
//	<python> <script> <file_path> --output <out.json>
//
// The processor prints a single status line to stdout,
// {"status":"success","chunk_count":N} or {"status":"error","error":"..."},
// and writes the chunk array to the output path. Any deviation from that
// contract is returned as an error so the caller can fall back to in-process
// extraction.
type SubprocessRunner struct {
	log        *logger.Logger
	pythonBin  string
	scriptPath string
	timeout    time.Duration
}

type subprocessStatus struct {
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error"`
}

type subprocessChunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func NewSubprocessRunner(log *logger.Logger) (*SubprocessRunner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SubprocessRunner{
		log:        log.With("service", "SubprocessRunner"),
		pythonBin:  envutil.String("PDF_PROCESSOR_PYTHON", "python3"),
		scriptPath: envutil.String("PDF_PROCESSOR_SCRIPT", "scripts/pdf_processor.py"),
		timeout:    envutil.Seconds("PDF_PROCESSOR_TIMEOUT_SECONDS", 2*time.Minute),
	}, nil
}

func (r *SubprocessRunner) Parse(ctx context.Context, path string) ([]domain.Chunk, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file path required")
	}
	if _, err := os.Stat(r.scriptPath); err != nil {
		return nil, fmt.Errorf("processor script unavailable: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "msb_processor_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "out.json")

	cmd := exec.CommandContext(callCtx, r.pythonBin, r.scriptPath, path, "--output", outPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	status, statusErr := parseStatusLine(stdout.Bytes())
	if statusErr != nil {
		if runErr != nil {
			s := strings.TrimSpace(stderr.String())
			if s != "" {
				return nil, fmt.Errorf("processor: %w; stderr=%s", runErr, s)
			}
			return nil, fmt.Errorf("processor: %w", runErr)
		}
		return nil, statusErr
	}
	if status.Status != "success" {
		return nil, fmt.Errorf("processor reported failure: %s", status.Error)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read processor output: %w", err)
	}
	var rows []subprocessChunk
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode processor output: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Text) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:       row.Text,
			PageNumber: pageFromMetadata(row.Metadata),
			ChunkIndex: len(chunks),
			Metadata:   row.Metadata,
		})
	}
	r.log.Debug("Processor subprocess succeeded",
		"file", filepath.Base(path),
		"chunk_count", len(chunks),
	)
	return chunks, nil
}

// parseStatusLine expects exactly one JSON object with a status field on
// stdout. Extra output, truncated output, or a missing status all violate
// the processor contract.
func parseStatusLine(stdout []byte) (subprocessStatus, error) {
	line := strings.TrimSpace(string(stdout))
	if line == "" {
		return subprocessStatus{}, fmt.Errorf("processor wrote no status line")
	}
	// Tolerate log noise before the final status line.
	if idx := strings.LastIndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[idx+1:])
	}
	var status subprocessStatus
	if err := json.Unmarshal([]byte(line), &status); err != nil {
		return subprocessStatus{}, fmt.Errorf("processor stdout is not valid JSON: %w", err)
	}
	if status.Status == "" {
		return subprocessStatus{}, fmt.Errorf("processor status line missing status field")
	}
	return status, nil
}

func pageFromMetadata(md map[string]any) int {
	if md == nil {
		return 0
	}
	switch v := md["page"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
