package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/loop_utopia/internal/ports"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// NodePrefix marks a fully qualified node id.
const NodePrefix = "lu:"

// Resolver resolves selectors to node presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolvePlayer resolves a player selector using config defaults. With no
// selector and no default, a single online player is picked.
func (r Resolver) ResolvePlayer(ctx context.Context, selector string) (lu.Presence, error) {
	if selector == "" {
		selector = r.Config.Defaults.Player
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return lu.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	players := filterPresenceByKind(presence, "player")
	if selector == "" {
		switch len(players) {
		case 1:
			return players[0], nil
		case 0:
			return lu.Presence{}, &CLIError{Code: ExitNotFound, Msg: "no players online"}
		default:
			return lu.Presence{}, &CLIError{Code: ExitUsage, Msg: "player selector required: " + suggestionList(players)}
		}
	}
	return resolveSelector(selector, players, r.Config.Aliases)
}

func filterPresenceByKind(presence []lu.Presence, kind string) []lu.Presence {
	if kind == "" {
		return presence
	}
	out := make([]lu.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []lu.Presence, aliases map[string]string) (lu.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return lu.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}

	if alias, ok := aliases[selector]; ok {
		selector = alias
	}
	if strings.HasPrefix(selector, NodePrefix) {
		return resolveExact(selector, presence)
	}

	matches := make([]lu.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return lu.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	default:
		return lu.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
	}
}

func resolveExact(nodeID string, presence []lu.Presence) (lu.Presence, error) {
	for _, p := range presence {
		if p.NodeID == nodeID {
			return p, nil
		}
	}
	return lu.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("node not found: %s", nodeID)}
}

func suggestionList(matches []lu.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
