package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"okr-cli/internal/model"
	"okr-cli/internal/tree"
)

// WriteJSON writes strict JSON output for CLI commands.
//
// NOTE: We intentionally keep output strict JSON only. If you need to
// communicate how to fetch more data, use a `meta` object or `_hint` fields.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteTree renders the node's subtree as an indented text outline. A nil
// id renders every root.
func WriteTree(w io.Writer, doc *tree.Document, rootID string) error {
	if rootID != "" {
		return writeSubtree(w, doc, rootID, 0)
	}
	for _, id := range doc.RootIDs {
		if err := writeSubtree(w, doc, id, 0); err != nil {
			return err
		}
	}
	return nil
}

func writeSubtree(w io.Writer, doc *tree.Document, id string, depth int) error {
	n, ok := doc.Nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %s", id)
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), Line(n)); err != nil {
		return err
	}
	for _, childID := range n.Children {
		if err := writeSubtree(w, doc, childID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Line is the one-line rendering used by the tree outline: type, title,
// progress, and the extras each type carries.
func Line(n *model.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (%d%%)", n.Type.Display(), n.Title, n.Progress)
	if n.Type == model.NodeKeyResult && n.KeyResult != nil && len(n.Children) == 0 {
		fmt.Fprintf(&sb, " %g/%g%s", n.KeyResult.CurrentValue, n.KeyResult.TargetValue, n.KeyResult.Unit)
	}
	if n.Task != nil {
		fmt.Fprintf(&sb, " [%s]", n.Task.Status)
		if n.Task.TimeSpent > 0 {
			fmt.Fprintf(&sb, " %s", Minutes(n.Task.TimeSpent))
		}
		if n.Task.TimerStartedAt != nil {
			sb.WriteString(" ⏱")
		}
	}
	fmt.Fprintf(&sb, "  id=%s", n.ID)
	return sb.String()
}

// Minutes renders a minute count as "3h 25m" / "45m".
func Minutes(m int) string {
	if m >= 60 {
		return fmt.Sprintf("%dh %dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm", m)
}
