package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/valyala/fastjson"
)

const defaultChunkSize = 500

// IngestCmd uploads log records from a file or stdin.
func IngestCmd() *cobra.Command {
	var (
		ndjson    bool
		compress  bool
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Append log records to the store",
		Long: `Appends log records read from a file, or stdin when no file is given.

The input is either a JSON document ({"batch":[...]} or a bare array) sent as is,
or newline-delimited JSON objects with --ndjson, sent in chunks.

Examples:
  logsage ingest events.json
  tail -n 1000 app.ndjson | logsage ingest --ndjson --zstd`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var payloads [][]byte
			if ndjson {
				payloads, err = chunkNDJSON(in, chunkSize)
			} else {
				var raw []byte
				raw, err = io.ReadAll(in)
				payloads = [][]byte{raw}
			}
			if err != nil {
				return err
			}

			total := 0
			var ids []string
			for _, payload := range payloads {
				result, err := api.AppendRaw(cmd.Context(), payload, compress)
				if err != nil {
					return fmt.Errorf("ingest failed after %d records: %w", total, err)
				}
				total += result.Count
				ids = append(ids, result.IDs...)
			}

			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"count": total, "ids": ids})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d record(s).\n", total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&ndjson, "ndjson", false, "Input is newline-delimited JSON")
	cmd.Flags().BoolVar(&compress, "zstd", false, "Compress request bodies with zstd")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", defaultChunkSize, "Records per request in --ndjson mode")
	return cmd
}

// chunkNDJSON validates each non-blank line as a JSON object and groups
// them into {"batch":[...]} payloads of at most size records.
func chunkNDJSON(r io.Reader, size int) ([][]byte, error) {
	if size <= 0 {
		size = defaultChunkSize
	}

	var (
		p        fastjson.Parser
		payloads [][]byte
		buf      bytes.Buffer
		n        int
		lineNo   int
	)
	flush := func() {
		if n == 0 {
			return
		}
		buf.WriteString("]}")
		payloads = append(payloads, append([]byte(nil), buf.Bytes()...))
		buf.Reset()
		n = 0
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		v, err := p.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		if v.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("line %d: expected a JSON object", lineNo)
		}

		if n == 0 {
			buf.WriteString(`{"batch":[`)
		} else {
			buf.WriteByte(',')
		}
		buf.Write(line)
		n++
		if n == size {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	flush()

	if len(payloads) == 0 {
		return nil, fmt.Errorf("no records in input")
	}
	return payloads, nil
}
