package parse

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"aiblog/internal/core"
	"aiblog/internal/textutil"
)

const (
	ContractTopic    = "topic"
	ContractTool     = "tool"
	ContractMetadata = "metadata"
)

// decodeObject reads a JSON object into raw fields, tolerating a code fence
// around it.
func decodeObject(contract, raw string) (map[string]json.RawMessage, error) {
	body := textutil.StripCodeFence(raw)
	if body == "" {
		return nil, newParseError(contract, raw, "empty response")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, newParseError(contract, raw, "invalid json: %v", err)
	}
	return fields, nil
}

func requireString(contract, raw string, fields map[string]json.RawMessage, name string) (string, error) {
	v, ok := fields[name]
	if !ok || isNull(v) {
		return "", newParseError(contract, raw, "missing field %s", name)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", newParseError(contract, raw, "field %s must be a string", name)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", newParseError(contract, raw, "missing field %s", name)
	}
	return s, nil
}

func requireStrings(contract, raw string, fields map[string]json.RawMessage, name string) ([]string, error) {
	v, ok := fields[name]
	if !ok || isNull(v) {
		return nil, newParseError(contract, raw, "missing field %s", name)
	}
	var items []string
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, newParseError(contract, raw, "field %s must be an array of strings", name)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// ParseTopicSelection parses the topic selector's structured reply.
func ParseTopicSelection(raw string) (core.TopicSelection, error) {
	return parseTopic(ContractTopic, raw)
}

func parseTopic(contract, raw string) (core.TopicSelection, error) {
	fields, err := decodeObject(contract, raw)
	if err != nil {
		return core.TopicSelection{}, err
	}

	title, err := requireString(contract, raw, fields, "title")
	if err != nil {
		return core.TopicSelection{}, err
	}
	hook, err := requireString(contract, raw, fields, "hook_description")
	if err != nil {
		return core.TopicSelection{}, err
	}
	queries, err := requireStrings(contract, raw, fields, "search_queries")
	if err != nil {
		return core.TopicSelection{}, err
	}

	return core.TopicSelection{Title: title, HookDescription: hook, SearchQueries: queries}, nil
}

// ParseToolSelection parses the "tool of the day" reply, which carries the
// topic fields plus the featured tool's name.
func ParseToolSelection(raw string) (core.TopicSelection, string, error) {
	topic, err := parseTopic(ContractTool, raw)
	if err != nil {
		return core.TopicSelection{}, "", err
	}
	fields, _ := decodeObject(ContractTool, raw)
	tool, err := requireString(ContractTool, raw, fields, "tool_name")
	if err != nil {
		return core.TopicSelection{}, "", err
	}
	return topic, tool, nil
}

// ParseMetadata parses the metadata extractor's reply. The category must be a
// JSON integer; read time is not part of the contract.
func ParseMetadata(raw string) (core.PostMetadata, error) {
	fields, err := decodeObject(ContractMetadata, raw)
	if err != nil {
		return core.PostMetadata{}, err
	}

	var meta core.PostMetadata
	if meta.Title, err = requireString(ContractMetadata, raw, fields, "title"); err != nil {
		return core.PostMetadata{}, err
	}
	if meta.MetaDescription, err = requireString(ContractMetadata, raw, fields, "meta_description"); err != nil {
		return core.PostMetadata{}, err
	}
	if meta.ImagePrompt, err = requireString(ContractMetadata, raw, fields, "image_prompt"); err != nil {
		return core.PostMetadata{}, err
	}
	if meta.Tags, err = requireStrings(ContractMetadata, raw, fields, "tags"); err != nil {
		return core.PostMetadata{}, err
	}

	v, ok := fields["category"]
	if !ok || isNull(v) {
		return core.PostMetadata{}, newParseError(ContractMetadata, raw, "missing field category")
	}
	id, err := strconv.ParseInt(string(bytes.TrimSpace(v)), 10, 64)
	if err != nil {
		return core.PostMetadata{}, newParseError(ContractMetadata, raw, "field category must be an integer, got %s", string(v))
	}
	meta.Category = id

	return meta, nil
}
