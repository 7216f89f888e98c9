package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

var errUsage = errors.New("usage")

const commandHelp = `Commands:
• item <name> <count>           set an item count
• + <name> / - <name>           step an item up or down
• collect <location> <section>  take one item from a section
• uncollect <location> <section>
• mark <location> <section> <text...>
• prize <location> <section> <prize>
• setting <name> <value>
• break <name> on|off           toggle a sequence break
• door <dungeon> <door> open|closed|clear
• reset                         start over
• /copy                         copy the tracker ID
• /snapshot                     copy a snapshot as JSON
• /paste                        restore a snapshot from the clipboard
• /help`

// parseCommand turns one console line into a mutation.
func parseCommand(line string) (engine.Mutation, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return engine.Mutation{}, fmt.Errorf("%w: empty command", errUsage)
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	want := func(n int, form string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s %s", errUsage, verb, form)
		}
		return nil
	}

	var m engine.Mutation
	switch verb {
	case "item":
		if err := want(2, "<name> <count>"); err != nil {
			return m, err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return m, fmt.Errorf("%w: count must be a number", errUsage)
		}
		m = engine.Mutation{Op: engine.OpSetItem, Name: args[0], Count: n}

	case "+", "-":
		if err := want(1, "<name>"); err != nil {
			return m, err
		}
		delta := 1
		if verb == "-" {
			delta = -1
		}
		m = engine.Mutation{Op: engine.OpCycleItem, Name: args[0], Delta: delta}

	case "collect", "uncollect":
		if err := want(2, "<location> <section>"); err != nil {
			return m, err
		}
		op := engine.OpCollect
		if verb == "uncollect" {
			op = engine.OpUncollect
		}
		m = engine.Mutation{Op: op, Location: args[0], Section: args[1]}

	case "mark":
		if err := want(2, "<location> <section> <text...>"); err != nil {
			return m, err
		}
		m = engine.Mutation{Op: engine.OpSetMarking, Location: args[0], Section: args[1], Value: strings.Join(args[2:], " ")}

	case "prize":
		if err := want(3, "<location> <section> <prize>"); err != nil {
			return m, err
		}
		m = engine.Mutation{Op: engine.OpSetPrize, Location: args[0], Section: args[1], Value: args[2]}

	case "setting":
		if err := want(2, "<name> <value>"); err != nil {
			return m, err
		}
		m = engine.Mutation{Op: engine.OpSetSetting, Name: args[0], Value: args[1]}

	case "break":
		if err := want(2, "<name> on|off"); err != nil {
			return m, err
		}
		on, err := parseSwitch(args[1], "on", "off")
		if err != nil {
			return m, err
		}
		m = engine.Mutation{Op: engine.OpSetSequenceBreak, Name: args[0], Enabled: on}

	case "door":
		if err := want(3, "<dungeon> <door> open|closed|clear"); err != nil {
			return m, err
		}
		if strings.EqualFold(args[2], "clear") {
			m = engine.Mutation{Op: engine.OpClearDoor, Dungeon: args[0], Door: args[1]}
			break
		}
		open, err := parseSwitch(args[2], "open", "closed")
		if err != nil {
			return m, err
		}
		m = engine.Mutation{Op: engine.OpSetDoor, Dungeon: args[0], Door: args[1], Enabled: open}

	case "reset":
		m = engine.Mutation{Op: engine.OpReset}

	default:
		return m, fmt.Errorf("%w: unknown command %q (try /help)", errUsage, verb)
	}
	return m, m.Validate()
}

func parseSwitch(s, on, off string) (bool, error) {
	switch strings.ToLower(s) {
	case on:
		return true, nil
	case off:
		return false, nil
	}
	return false, fmt.Errorf("%w: expected %s or %s, got %q", errUsage, on, off, s)
}
