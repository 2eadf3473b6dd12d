/*
 * Copyright 2025 Carver Automation Corporation.
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

package record

// Schema is the set of fields a collector declares for one record kind.
// Collectors of the same kind may declare different schemas; the Registry
// folds their usage into one global view.
type Schema struct {
	kind   string
	fields map[string]*Field
	order  []string
}

func NewSchema(kind string, fields ...*Field) *Schema {
	s := &Schema{
		kind:   kind,
		fields: make(map[string]*Field, len(fields)),
	}

	for _, f := range fields {
		s.add(f)
	}

	return s
}

func (s *Schema) add(f *Field) {
	if f == nil || f.name == "" {
		return
	}

	if _, exists := s.fields[f.name]; !exists {
		s.order = append(s.order, f.name)
	}

	s.fields[f.name] = f
}

// Extend returns a copy of the schema with additional (or redeclared) fields.
func (s *Schema) Extend(fields ...*Field) *Schema {
	out := &Schema{
		kind:   s.kind,
		fields: make(map[string]*Field, len(s.fields)+len(fields)),
		order:  append([]string(nil), s.order...),
	}

	for name, f := range s.fields {
		out.fields[name] = f
	}

	for _, f := range fields {
		out.add(f)
	}

	return out
}

func (s *Schema) Kind() string {
	return s.kind
}

func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}

	return out
}
