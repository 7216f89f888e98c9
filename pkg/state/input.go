package state

// InputKind classifies what a requirement or node reads.
type InputKind uint8

const (
	KindItem InputKind = iota + 1
	KindSetting
	KindSequenceBreak
	KindNode
)

func (k InputKind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindSetting:
		return "setting"
	case KindSequenceBreak:
		return "break"
	case KindNode:
		return "node"
	default:
		return "unknown"
	}
}

// Input names one observable value. Inputs are the keys of the subscriber
// index that drives incremental recomputation.
type Input struct {
	Kind InputKind
	Name string
}

func (i Input) String() string {
	return i.Kind.String() + ":" + i.Name
}

func ItemInput(name string) Input    { return Input{Kind: KindItem, Name: name} }
func SettingInput(name string) Input { return Input{Kind: KindSetting, Name: name} }
func BreakInput(name string) Input   { return Input{Kind: KindSequenceBreak, Name: name} }
func NodeInput(id string) Input      { return Input{Kind: KindNode, Name: id} }
