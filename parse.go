/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hyperterse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// docConfig is the map-oriented, on-disk shape of a configuration
// document: adapters and queries keyed by name, field aliases accepted
// for both the "connection_string"/"url" and "use"/"adapter" pairs, and
// "optional"/"required" for inputs (required wins when both are set).
// This is the schema original_source/parser/yaml.rs calls TerseConfig and
// treats as the one actually authored in practice; see DESIGN.md.
type docConfig struct {
	SchemaVersion string                    `yaml:"schemaVersion" json:"schemaVersion"`
	Name          string                    `yaml:"name" json:"name"`
	Adapters      map[string]docAdapter     `yaml:"adapters" json:"adapters"`
	Queries       map[string]docQuery       `yaml:"queries" json:"queries"`
	Server        *docServer                `yaml:"server" json:"server"`
	Export        *docExport                `yaml:"export" json:"export"`
}

type docAdapter struct {
	Connector        Connector         `yaml:"connector" json:"connector"`
	ConnectionString string            `yaml:"connection_string" json:"connection_string"`
	URL              string            `yaml:"url" json:"url"`
	Options          map[string]string `yaml:"options" json:"options"`
}

type docQuery struct {
	Use         string              `yaml:"use" json:"use"`
	Adapter     string              `yaml:"adapter" json:"adapter"`
	Statement   string              `yaml:"statement" json:"statement"`
	Description string              `yaml:"description" json:"description"`
	Inputs      map[string]docInput `yaml:"inputs" json:"inputs"`
}

type docInput struct {
	Type        Primitive `yaml:"type" json:"type"`
	Description string    `yaml:"description" json:"description"`
	Optional    *bool     `yaml:"optional" json:"optional"`
	Required    *bool     `yaml:"required" json:"required"`
	Default     any       `yaml:"default" json:"default"`
}

type docServer struct {
	Port                any    `yaml:"port" json:"port"`
	LogLevel            uint8  `yaml:"log_level" json:"log_level"`
	HealthCheckInterval string `yaml:"health_check_interval" json:"health_check_interval"`
}

type docExport struct {
	Out       string `yaml:"out" json:"out"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// ParseFile loads and substitutes a configuration document from path,
// choosing YAML or JSON decoding by file extension (.json decodes as
// JSON; everything else as YAML). It does not validate the result; call
// Model.Validate or Model.IsValid for that. strict controls whether an
// unresolved {{ env.NAME }} placeholder fails parsing (true, the default
// at config load) or is left in place (false).
func ParseFile(path string, strict bool) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errConfig("failed to read %s: %v", path, err)
	}
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")
	return Parse(raw, isJSON, strict)
}

// Parse decodes a configuration document already in memory. See
// ParseFile for the strict/json semantics.
func Parse(raw []byte, isJSON bool, strict bool) (*Model, error) {
	substituted, err := substituteEnvDocument(string(raw), strict)
	if err != nil {
		return nil, err
	}

	var doc docConfig
	if isJSON {
		if err := json.Unmarshal([]byte(substituted), &doc); err != nil {
			return nil, errConfig("JSON parse error: %v", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(substituted), &doc); err != nil {
			return nil, errConfig("YAML parse error: %v", err)
		}
	}

	return docToModel(&doc)
}

// substituteEnvDocument resolves {{ env.NAME }} placeholders in an entire
// document before structural decoding, per §4.1. In strict mode a missing
// variable is a fatal EnvVarNotFound; in lenient mode the placeholder is
// left untouched.
func substituteEnvDocument(content string, strict bool) (string, error) {
	var err error
	result := rxEnvPlaceholder.ReplaceAllStringFunc(content, func(match string) string {
		if err != nil {
			return match
		}
		name := rxEnvPlaceholder.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			if strict {
				err = errEnvVarNotFound(name)
			}
			return match
		}
		return value
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// docToModel converts the map-keyed on-disk schema into the ordered
// Model used by the rest of the package. Map iteration order is not
// stable, so adapters/queries are sorted by name for deterministic
// output (configs don't rely on map order; §3 only requires an "ordered
// list", not a caller-chosen order).
func docToModel(doc *docConfig) (*Model, error) {
	m := &Model{
		SchemaVersion: doc.SchemaVersion,
		Name:          doc.Name,
	}

	names := make([]string, 0, len(doc.Adapters))
	for name := range doc.Adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		da := doc.Adapters[name]
		url := da.ConnectionString
		if url == "" {
			url = da.URL
		}
		if url == "" {
			return nil, errConfig("adapter %q is missing 'connection_string' (or 'url')", name)
		}
		m.Adapters = append(m.Adapters, Adapter{
			Name:      name,
			Connector: da.Connector,
			URL:       url,
			Options:   da.Options,
		})
	}

	qnames := make([]string, 0, len(doc.Queries))
	for name := range doc.Queries {
		qnames = append(qnames, name)
	}
	sort.Strings(qnames)
	for _, name := range qnames {
		dq := doc.Queries[name]
		adapter := dq.Use
		if adapter == "" {
			adapter = dq.Adapter
		}
		if adapter == "" {
			return nil, errConfig("query %q is missing 'use' (or 'adapter')", name)
		}

		q := Query{
			Name:        name,
			Adapter:     adapter,
			Statement:   dq.Statement,
			Description: dq.Description,
		}

		inames := make([]string, 0, len(dq.Inputs))
		for iname := range dq.Inputs {
			inames = append(inames, iname)
		}
		sort.Strings(inames)
		for _, iname := range inames {
			di := dq.Inputs[iname]
			required := true
			if di.Optional != nil {
				required = !*di.Optional
			}
			if di.Required != nil {
				required = *di.Required
			}
			q.Inputs = append(q.Inputs, Input{
				Name:        iname,
				Type:        di.Type,
				Required:    required,
				Default:     di.Default,
				Description: di.Description,
			})
		}

		m.Queries = append(m.Queries, q)
	}

	if doc.Server != nil {
		server := &ServerConfig{
			LogLevel:            doc.Server.LogLevel,
			HealthCheckInterval: doc.Server.HealthCheckInterval,
		}
		if p := yamlScalarToString(doc.Server.Port); p != "" {
			server.Port = p
		}
		m.Server = server
	}

	if doc.Export != nil {
		outputDir := doc.Export.OutputDir
		if outputDir == "" {
			outputDir = doc.Export.Out
		}
		m.Export = &ExportConfig{
			BaseURL:   doc.Export.BaseURL,
			OutputDir: outputDir,
		}
	}

	return m, nil
}

// yamlScalarToString coerces a loosely-typed scalar (as decoded from
// YAML/JSON into `any`) to its string form, e.g. a numeric port value.
func yamlScalarToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return fmt.Sprintf("%v", t)
	case float64:
		return formatJSONNumber(t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
