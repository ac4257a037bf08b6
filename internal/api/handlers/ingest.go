package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/cloo-solutions/logsage/internal/domain"
)

var errInvalidBatch = errors.New(`body must be {"batch":[...]} or a JSON array of logs`)

// known maps accepted wire keys to record fields. SDKs disagree on a few
// names, so aliases land on the same field.
var known = map[string]string{
	"timestamp":   "timestamp",
	"app":         "app",
	"appName":     "app",
	"url":         "url",
	"userAgent":   "userAgent",
	"level":       "level",
	"type":        "type",
	"message":     "message",
	"msg":         "message",
	"data":        "data",
	// Server-assigned; client values are dropped.
	"id":          "",
	"received_at": "",
}

// parseBatch decodes an ingest payload. Keys the store has no column for
// are folded into the record's data object; a non-object data value is kept
// under "value" next to them. On a key clash the data value wins.
func parseBatch(body []byte) ([]domain.LogRecord, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var items []*fastjson.Value
	switch root.Type() {
	case fastjson.TypeArray:
		items, _ = root.Array()
	case fastjson.TypeObject:
		batch := root.Get("batch")
		if batch == nil || batch.Type() != fastjson.TypeArray {
			return nil, errInvalidBatch
		}
		items, _ = batch.Array()
	default:
		return nil, errInvalidBatch
	}

	records := make([]domain.LogRecord, 0, len(items))
	for i, item := range items {
		rec, err := parseRecord(item)
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(v *fastjson.Value) (domain.LogRecord, error) {
	obj, err := v.Object()
	if err != nil {
		return domain.LogRecord{}, fmt.Errorf("must be a JSON object")
	}

	var rec domain.LogRecord
	var arena fastjson.Arena
	var data *fastjson.Value
	extras := arena.NewObject()
	hasExtras := false

	obj.Visit(func(key []byte, val *fastjson.Value) {
		field, ok := known[string(key)]
		if !ok {
			extras.Set(string(key), val)
			hasExtras = true
			return
		}
		switch field {
		case "timestamp":
			rec.Timestamp = scalar(val)
		case "app":
			if rec.App == "" {
				rec.App = scalar(val)
			}
		case "url":
			rec.URL = scalar(val)
		case "userAgent":
			rec.UserAgent = scalar(val)
		case "level":
			rec.Level = scalar(val)
		case "type":
			rec.Type = scalar(val)
		case "message":
			if rec.Message == "" {
				rec.Message = scalar(val)
			}
		case "data":
			data = val
		}
	})

	switch {
	case hasExtras && (data == nil || data.Type() == fastjson.TypeNull):
		rec.Data = json.RawMessage(extras.MarshalTo(nil))
	case hasExtras && data.Type() == fastjson.TypeObject:
		merged, _ := data.Object()
		extrasObj, _ := extras.Object()
		extrasObj.Visit(func(key []byte, val *fastjson.Value) {
			if merged.Get(string(key)) == nil {
				merged.Set(string(key), val)
			}
		})
		rec.Data = json.RawMessage(data.MarshalTo(nil))
	case hasExtras:
		extras.Set("value", data)
		rec.Data = json.RawMessage(extras.MarshalTo(nil))
	case data != nil && data.Type() != fastjson.TypeNull:
		rec.Data = json.RawMessage(data.MarshalTo(nil))
	}

	return rec, nil
}

// scalar renders a JSON value as text: strings unquoted, everything else as
// its JSON form.
func scalar(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	default:
		return string(v.MarshalTo(nil))
	}
}
