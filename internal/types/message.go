package types

// ParamMessage is a decoded PARAM_VALUE. The same shape carries both
// declarations and value-only updates, see SentinelIndex.
type ParamMessage struct {
	Index uint16
	Name  string
	Value float32
	Type  ParamType

	// Count is the total number of parameters on the device, when the
	// message carries it.
	Count *uint16
}

// IsValueUpdate reports whether the message only refreshes a value.
func (m ParamMessage) IsValueUpdate() bool {
	return m.Index == SentinelIndex
}

// Parameter builds the raw, unenriched parameter declared by m.
func (m ParamMessage) Parameter() Parameter {
	return Parameter{
		Name:  m.Name,
		Index: m.Index,
		Value: RoundValue(float64(m.Value)),
		Type:  m.Type,
	}
}
