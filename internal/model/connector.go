package model

// TypeKey is the reserved configuration key naming the connector type.
const TypeKey = "type"

// ConnectorConfig is the parameter map for one connector instance. It always
// carries a TypeKey discriminator. Connectors validate it, and may fill in
// defaults, before first use.
type ConnectorConfig map[string]any

// Type returns the connector type discriminator, or "" when absent.
func (c ConnectorConfig) Type() string {
	s, _ := c[TypeKey].(string)
	return s
}

// String returns the string value for key.
func (c ConnectorConfig) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Bool returns the boolean value for key.
func (c ConnectorConfig) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Int returns the integer value for key.
func (c ConnectorConfig) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Clone returns a shallow copy of the configuration.
func (c ConnectorConfig) Clone() ConnectorConfig {
	out := make(ConnectorConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
