// Package manifest describes batches of render jobs in YAML and runs them.
//
//	concurrency: 4
//	data: [site.yaml]
//	filters:
//	  title: singleLine|fixedLength:40
//	jobs:
//	  - name: readme
//	    template: templates/readme.tpl
//	    data: [readme.yaml]
//	    vars: {lang: en}
//	    output: out/{=lang}/README.md
//	    strict: true
package manifest

import (
	"fmt"
	"io"
	"os"

	"github.com/neurodesk/texttemplate/pkg/data"
	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	v "github.com/neurodesk/texttemplate/pkg/validator"
	"gopkg.in/yaml.v3"
)

type Manifest struct {
	// Concurrency limits parallel jobs; 0 means one per CPU.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Data files loaded for every job before the job's own files.
	Data []string `yaml:"data,omitempty"`
	// Vars are inline variables shared by every job.
	Vars yaml.Node `yaml:"vars,omitempty"`
	// Filters maps alias names to filter chains.
	Filters map[string]string `yaml:"filters,omitempty"`
	Jobs    []Job             `yaml:"jobs"`
}

type Job struct {
	Name     string                      `yaml:"name"`
	Template string                      `yaml:"template"`
	Data     []string                    `yaml:"data,omitempty"`
	Vars     yaml.Node                   `yaml:"vars,omitempty"`
	Output   texttemplate.TemplateString `yaml:"output"`
	Strict   bool                        `yaml:"strict,omitempty"`
}

func (j Job) Validate() error {
	if err := v.All(
		v.NotEmpty(j.Name, "job name"),
		v.HasNoTags(j.Name, "job name"),
		v.NotEmpty(j.Template, "template"),
		v.NotEmpty(string(j.Output), "output"),
		j.Output.Validate(),
		v.Map(j.Data, v.NotEmpty, "data"),
		validateVars(&j.Vars, "vars"),
	); err != nil {
		return fmt.Errorf("job %q: %w", j.Name, err)
	}
	return nil
}

func (m *Manifest) Validate() error {
	names := make([]string, len(m.Jobs))
	for i, j := range m.Jobs {
		names[i] = j.Name
	}
	return v.All(
		v.NonNegative(m.Concurrency, "concurrency"),
		v.Map(m.Data, v.NotEmpty, "data"),
		validateVars(&m.Vars, "vars"),
		v.MapDict(m.Filters, func(name, chain string) error {
			return v.All(
				v.Identifier(name, "filter alias"),
				v.NotEmpty(chain, fmt.Sprintf("filter alias %q", name)),
			)
		}),
		v.NoDuplicates(names, "job names"),
		v.Each(m.Jobs),
	)
}

func validateVars(n *yaml.Node, description string) error {
	_, err := varsContext(n, description)
	return err
}

// varsContext converts a vars node to a context. An unset or null node
// gives an empty context.
func varsContext(n *yaml.Node, description string) (texttemplate.Context, error) {
	ctx := texttemplate.Context{}
	if n.Kind == 0 {
		return ctx, nil
	}
	val, err := data.FromNode(n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", description, err)
	}
	switch m := val.(type) {
	case texttemplate.NoneValue:
		return ctx, nil
	case texttemplate.Mapping:
		for _, k := range m.Keys() {
			ctx[k], _ = m.Get(k)
		}
		return ctx, nil
	}
	return nil, fmt.Errorf("%s must be a mapping (line %d)", description, n.Line)
}

// Decode reads and validates a manifest. Unknown fields are errors.
func Decode(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
