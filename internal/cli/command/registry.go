package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var sourceField = Field{Name: "source", Aliases: []string{"src"}, Prompt: "interface source", Type: FieldFile, Required: true}

var keyField = Field{Name: "key", Aliases: []string{"id"}, Prompt: "interface key", Type: FieldString, Required: true}

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "interface",
			Action:       "compile",
			Method:       "POST",
			PathTemplate: "/api/v1/interfaces",
			Fields:       []Field{sourceField},
			Summary:      "compile a source and print its report",
		},
		{
			Service:      "interface",
			Action:       "validate",
			Method:       "POST",
			PathTemplate: "/api/v1/interfaces/validate",
			Fields:       []Field{sourceField},
			Summary:      "compile a source and fail on any diagnostic",
		},
		{
			Service:      "interface",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/interfaces/:key",
			Fields:       []Field{keyField},
			Summary:      "fetch the report of a compiled interface",
		},
		{
			Service:      "interface",
			Action:       "describe",
			Method:       "GET",
			PathTemplate: "/api/v1/interfaces/:key/describe",
			Fields:       []Field{keyField},
			Summary:      "print the canonical description",
		},
		{
			Service:      "interface",
			Action:       "forget",
			Method:       "DELETE",
			PathTemplate: "/api/v1/interfaces/:key",
			Fields:       []Field{keyField},
			Summary:      "drop a compiled interface and its report",
		},
		{
			Service:      "service",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/healthz",
			Summary:      "check the service and its cache",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// Sorted returns the commands ordered by key.
func Sorted(commands map[string]Command) []Command {
	out := make([]Command, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	for _, key := range []string{"key"} {
		placeholder := ":" + key
		if strings.Contains(path, placeholder) {
			value := params.Get(key)
			if value == "" {
				return "", fmt.Errorf("missing path parameter: %s", key)
			}
			path = strings.ReplaceAll(path, placeholder, value)
		}
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service != "interface" {
		return nil, nil
	}
	switch cmd.Action {
	case "compile", "validate":
		source, err := params.Value(sourceField)
		if err != nil {
			return nil, err
		}
		if source == "" {
			return nil, fmt.Errorf("source is required")
		}
		return map[string]string{"source": source}, nil
	}
	return nil, nil
}
