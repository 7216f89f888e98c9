package catalog

// The types below mirror the YAML world file one to one.

type fileWorld struct {
	Name           string        `yaml:"name"`
	Start          string        `yaml:"start"`
	Items          []fileItem    `yaml:"items"`
	Settings       []fileSetting `yaml:"settings"`
	SequenceBreaks []fileBreak   `yaml:"sequence_breaks"`
	Complex        []fileComplex `yaml:"complex"`
	Nodes          []string      `yaml:"nodes"`
	Connections    []fileConn    `yaml:"connections"`
	Dungeons       []fileDungeon `yaml:"dungeons"`
	Locations      []fileLoc     `yaml:"locations"`
}

type fileItem struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Max   int    `yaml:"max"`
	Start int    `yaml:"start"`
}

type fileSetting struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
	Default string   `yaml:"default"`
}

type fileBreak struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

type fileComplex struct {
	ID       string `yaml:"id"`
	Requires Expr   `yaml:"requires"`
}

type fileConn struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Requires Expr   `yaml:"requires"`
	BigKey   bool   `yaml:"big_key"`
}

type fileDungeon struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Entrances   []string        `yaml:"entrances"`
	Entry       string          `yaml:"entry"`
	Prize       bool            `yaml:"prize"`
	SmallKeys   int             `yaml:"small_keys"`
	Nodes       []string        `yaml:"nodes"`
	Connections []fileConn      `yaml:"connections"`
	Doors       []fileDoor      `yaml:"doors"`
	Placements  []filePlacement `yaml:"placements"`
	Boss        *fileBoss       `yaml:"boss"`
}

type fileDoor struct {
	ID       string `yaml:"id"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Requires Expr   `yaml:"requires"`
}

type filePlacement struct {
	ID       string `yaml:"id"`
	Node     string `yaml:"node"`
	Kind     string `yaml:"kind"`
	Key      bool   `yaml:"key"`
	Requires Expr   `yaml:"requires"`
}

type fileBoss struct {
	Node     string `yaml:"node"`
	Requires Expr   `yaml:"requires"`
}

type fileLoc struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Sections []fileSection `yaml:"sections"`
}

type fileSection struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Node     string `yaml:"node"`
	Dungeon  string `yaml:"dungeon"`
	Count    int    `yaml:"count"`
	Requires Expr   `yaml:"requires"`
}
