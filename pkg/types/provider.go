// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the harvest-engine pipeline.
// Implements: prd001-providers (Provider, ServiceRequest, SrConfig);
//
//	prd002-mapping (SrResponseKey, ArrayKey, ReturnDataType);
//	prd004-search (Document, PositionConfig).
package types

import "strings"

// SrType classifies what shape of payload a service request returns.
type SrType string

const (
	SrTypeList   SrType = "list"
	SrTypeSingle SrType = "single"
	SrTypeDetail SrType = "detail"
	SrTypeMixed  SrType = "mixed"
)

// ReturnDataType selects the transform applied to an extracted response
// value. It is a closed set; Valid rejects anything else so mapping code
// can switch exhaustively.
type ReturnDataType string

const (
	ReturnText   ReturnDataType = "text"
	ReturnArray  ReturnDataType = "array"
	ReturnObject ReturnDataType = "object"
)

// Valid reports whether t is one of the three known return data types.
func (t ReturnDataType) Valid() bool {
	switch t {
	case ReturnText, ReturnArray, ReturnObject:
		return true
	}
	return false
}

// PropertyValueType declares which value form a Property slot accepts.
type PropertyValueType string

const (
	PropertyText       PropertyValueType = "text"
	PropertyBigText    PropertyValueType = "big_text"
	PropertyChoice     PropertyValueType = "choice"
	PropertyList       PropertyValueType = "list"
	PropertyEntityList PropertyValueType = "entity_list"
)

// Property is a typed, named configurable slot usable at provider or
// service-request scope. Choice and entity_list properties carry the
// allowed value set.
type Property struct {
	Name      string            `json:"name" yaml:"name" validate:"required"`
	Label     string            `json:"label" yaml:"label"`
	ValueType PropertyValueType `json:"value_type" yaml:"value_type"`
	Required  bool              `json:"required" yaml:"required"`
	Choices   []string          `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Provider is the configuration root for one external API tenant.
type Provider struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name" validate:"required"`
	Label string `json:"label" yaml:"label"`

	// Properties holds resolved provider-scope values keyed by property
	// name: auth type, base URL, credentials, token endpoint template.
	Properties map[string]string `json:"properties" yaml:"properties"`

	ServiceRequests []ServiceRequest `json:"service_requests" yaml:"service_requests" validate:"dive"`
}

// Property returns the provider-scope value for name, or "" when unset.
func (p *Provider) Property(name string) string {
	return p.Properties[name]
}

// ServiceRequestByName returns the named service request, or nil.
func (p *Provider) ServiceRequestByName(name string) *ServiceRequest {
	for i := range p.ServiceRequests {
		if p.ServiceRequests[i].Name == name {
			return &p.ServiceRequests[i]
		}
	}
	return nil
}

// OverrideFlags controls which configuration aspects a child service
// request defines itself rather than inheriting from its parent. A
// cleared flag means the nearest ancestor with that aspect defined wins.
type OverrideFlags struct {
	ResponseKeys bool `json:"response_key_override" yaml:"response_key_override"`
	Configs      bool `json:"config_override" yaml:"config_override"`
	Parameters   bool `json:"parameter_override" yaml:"parameter_override"`
	Scheduler    bool `json:"scheduler_override" yaml:"scheduler_override"`
	RateLimits   bool `json:"rate_limits_override" yaml:"rate_limits_override"`
}

// ServiceRequest is one fetchable operation definition under a provider
// and service pair.
type ServiceRequest struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name" validate:"required"`
	Label   string `json:"label" yaml:"label"`
	Service string `json:"service" yaml:"service" validate:"required"`
	Type    SrType `json:"type" yaml:"type"`

	// PaginationType names the provider's paging scheme (e.g. "offset",
	// "page"). Empty means single-shot fetch.
	PaginationType string `json:"pagination_type" yaml:"pagination_type"`

	// ListKey locates the item container in a raw response: the reserved
	// values "root_items" / "root_array", or a dotted path.
	ListKey string `json:"list_key" yaml:"list_key"`

	// ListItemRepeaterKey is the XML element name that repeats once per
	// item inside the container. JSON sources leave it empty.
	ListItemRepeaterKey string `json:"list_item_repeater_key" yaml:"list_item_repeater_key"`

	FormatOptions map[string]string `json:"format_options,omitempty" yaml:"format_options,omitempty"`
	IsDefault     bool              `json:"is_default" yaml:"is_default"`

	// DefaultData carries free-form defaults (sort order, etc.) applied
	// when a search does not specify its own.
	DefaultData map[string]any `json:"default_data,omitempty" yaml:"default_data,omitempty"`

	// Properties holds resolved SR-scope property values.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`

	QueryParameters []RequestParameter `json:"query_parameters,omitempty" yaml:"query_parameters,omitempty"`
	Configs         []SrConfig         `json:"configs,omitempty" yaml:"configs,omitempty"`
	ResponseKeys    []SrResponseKey    `json:"response_keys,omitempty" yaml:"response_keys,omitempty" validate:"dive"`

	// Parent names the service request this one inherits from; empty for
	// roots. Overrides selects which aspects this child defines itself.
	Parent    string        `json:"parent,omitempty" yaml:"parent,omitempty"`
	Overrides OverrideFlags `json:"overrides" yaml:"overrides"`
}

// Property returns the SR-scope value for name, or "" when unset.
func (sr *ServiceRequest) Property(name string) string {
	return sr.Properties[name]
}

// Config returns the named config slot, or nil.
func (sr *ServiceRequest) Config(name string) *SrConfig {
	for i := range sr.Configs {
		if sr.Configs[i].Name == name {
			return &sr.Configs[i]
		}
	}
	return nil
}

// ResponseKeyByName returns the named response key, or nil.
func (sr *ServiceRequest) ResponseKeyByName(name string) *SrResponseKey {
	for i := range sr.ResponseKeys {
		if sr.ResponseKeys[i].Name == name {
			return &sr.ResponseKeys[i]
		}
	}
	return nil
}

// RequestParameter is one ordered outbound parameter: a name and a value
// template resolved against the request context at build time.
type RequestParameter struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// SrConfig is one named configuration slot attached to a service request,
// keyed by a shared Property dictionary entry (endpoint, method, headers,
// body, query, auth sub-templates). Exactly one of Value, TextValue, or
// ArrayValue is populated, according to the property's declared type.
type SrConfig struct {
	Name      string            `json:"name" yaml:"name" validate:"required"`
	ValueType PropertyValueType `json:"value_type" yaml:"value_type"`
	Value     string            `json:"value,omitempty" yaml:"value,omitempty"`
	TextValue string            `json:"text_value,omitempty" yaml:"text_value,omitempty"`
	ArrayVal  []string          `json:"array_value,omitempty" yaml:"array_value,omitempty"`
}

// Resolved returns the populated scalar form of the slot. Array slots
// return their elements joined by newline; callers that need the raw list
// read ArrayVal directly.
func (c *SrConfig) Resolved() string {
	switch {
	case c.Value != "":
		return c.Value
	case c.TextValue != "":
		return c.TextValue
	case len(c.ArrayVal) > 0:
		return strings.Join(c.ArrayVal, "\n")
	}
	return ""
}

// ArrayKey pairs a target sub-object key name with the match expression
// that resolves its value from an array element. The expression is a
// plain key, a dotted path, or a "path.to.key=VALUE" equality filter.
type ArrayKey struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// NestedRequest links a response key to the service request that must be
// triggered to fully resolve its value.
type NestedRequest struct {
	RequestName      string             `json:"request_name" yaml:"request_name"`
	RequestOperation string             `json:"request_operation" yaml:"request_operation"`
	RequestParams    []RequestParameter `json:"request_parameters,omitempty" yaml:"request_parameters,omitempty"`
}

// SrResponseKey is one field-mapping rule: it projects a source path in
// the raw response onto a named field of the normalized output.
type SrResponseKey struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Value string `json:"value" yaml:"value"`

	ShowInResponse bool `json:"show_in_response" yaml:"show_in_response"`

	// ListItem marks a per-item field, mapped across every element of
	// the items array. Cleared means a list-level field extracted once
	// against the whole parent structure.
	ListItem bool `json:"list_item" yaml:"list_item"`

	CustomValue string `json:"custom_value,omitempty" yaml:"custom_value,omitempty"`
	Searchable  bool   `json:"searchable" yaml:"searchable"`

	IsDate     bool   `json:"is_date" yaml:"is_date"`
	DateFormat string `json:"date_format,omitempty" yaml:"date_format,omitempty"`

	PrependExtraData      bool   `json:"prepend_extra_data" yaml:"prepend_extra_data"`
	PrependExtraDataValue string `json:"prepend_extra_data_value,omitempty" yaml:"prepend_extra_data_value,omitempty"`
	AppendExtraData       bool   `json:"append_extra_data" yaml:"append_extra_data"`
	AppendExtraDataValue  string `json:"append_extra_data_value,omitempty" yaml:"append_extra_data_value,omitempty"`

	// IsServiceRequest wraps the extracted value with a descriptor of the
	// nested sub-request that resolves it; Nested must then be set.
	IsServiceRequest bool           `json:"is_service_request" yaml:"is_service_request"`
	Nested           *NestedRequest `json:"nested,omitempty" yaml:"nested,omitempty"`

	ArrayKeys      []ArrayKey     `json:"array_keys,omitempty" yaml:"array_keys,omitempty"`
	ReturnDataType ReturnDataType `json:"return_data_type" yaml:"return_data_type"`
}
