package uia

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"winui-mcp-server/internal/facts"
)

const (
	minSnapshotDepth = 1
	maxSnapshotDepth = 10

	displayNameCap = 50
)

// roleNames maps provider control types to the normalized roles used in
// snapshot output. Unmapped types render as the generic "element".
var roleNames = map[ControlType]string{
	ControlButton:      "button",
	ControlEdit:        "textbox",
	ControlText:        "text",
	ControlCheckBox:    "checkbox",
	ControlRadioButton: "radio",
	ControlComboBox:    "combobox",
	ControlList:        "list",
	ControlListItem:    "listitem",
	ControlMenu:        "menu",
	ControlMenuBar:     "menubar",
	ControlMenuItem:    "menuitem",
	ControlTree:        "tree",
	ControlTreeItem:    "treeitem",
	ControlTab:         "tablist",
	ControlTabItem:     "tab",
	ControlTable:       "table",
	ControlDataItem:    "row",
	ControlSlider:      "slider",
	ControlProgressBar: "progressbar",
	ControlHyperlink:   "link",
	ControlImage:       "image",
	ControlGroup:       "group",
	ControlPane:        "element",
	ControlWindow:      "window",
	ControlToolBar:     "toolbar",
	ControlDataGrid:    "grid",
}

// actionableRoles are always included even without a name; these are the
// roles a caller acts on, so they must always be addressable.
var actionableRoles = map[string]bool{
	"button":   true,
	"textbox":  true,
	"checkbox": true,
	"radio":    true,
	"combobox": true,
	"listitem": true,
	"menuitem": true,
	"tab":      true,
	"treeitem": true,
	"link":     true,
	"slider":   true,
}

// structuralRoles are always included even without a name; they carry the
// tree's shape in the output.
var structuralRoles = map[string]bool{
	"window":  true,
	"group":   true,
	"list":    true,
	"tree":    true,
	"tablist": true,
	"menu":    true,
	"menubar": true,
	"toolbar": true,
	"grid":    true,
	"table":   true,
}

func roleFor(ct ControlType) string {
	if name, ok := roleNames[ct]; ok {
		return name
	}
	return "element"
}

// displayName prefers the accessible name, falling back to the bracketed
// automation id capped to a readable length. Empty when neither exists.
func displayName(p Props) string {
	if p.Name != "" {
		return p.Name
	}
	if p.AutomationID != "" {
		id := p.AutomationID
		if utf8.RuneCountInString(id) > displayNameCap {
			id = string([]rune(id)[:displayNameCap])
		}
		return "[" + id + "]"
	}
	return ""
}

// Snapshot walks the active window's tree and renders one line per
// included element, allocating a fresh reference for each. The previous
// snapshot's references are invalidated even if the tree is unchanged.
func (d *Driver) Snapshot(ctx context.Context, maxDepth int, includeBounds bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.col.Provider == nil {
		return "", &ErrUnavailable{What: "automation provider"}
	}
	if maxDepth < minSnapshotDepth {
		maxDepth = minSnapshotDepth
	}
	if maxDepth > maxSnapshotDepth {
		maxDepth = maxSnapshotDepth
	}

	root, ok := d.state.ActiveElement()
	if !ok {
		return "", fmt.Errorf("no active window; launch or attach first")
	}
	if err := d.state.BeginSnapshot(); err != nil {
		return "", err
	}

	var (
		sb       strings.Builder
		elFacts  []facts.Fact
		gen      = d.state.Active().Generation
		walkTime = time.Now()
	)
	d.walk(root, 0, maxDepth, includeBounds, &sb, func(ref, role, name string) {
		elFacts = append(elFacts, facts.Fact{
			Predicate: "ui_element",
			Args:      []interface{}{gen, ref, role, name},
			Timestamp: walkTime,
		})
	})
	d.emit(ctx, elFacts...)

	out := sb.String()
	if out == "" {
		return "(window reported an empty tree)", nil
	}
	return out, nil
}

// walk emits the node's line when the inclusion rule admits it, then
// descends into its children. A failure reading one subtree is swallowed
// so a transiently inconsistent branch cannot abort the whole snapshot.
func (d *Driver) walk(el Element, depth, maxDepth int, includeBounds bool, sb *strings.Builder, noteFact func(ref, role, name string)) {
	props, err := d.col.Provider.Props(el)
	if err != nil {
		return
	}

	role := roleFor(props.ControlType)
	name := displayName(props)

	included := name != "" || actionableRoles[role] || structuralRoles[role]
	if included {
		ref := d.state.AllocRef(el)
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("- ")
		sb.WriteString(role)
		if name != "" {
			fmt.Fprintf(sb, " %q", name)
		}
		fmt.Fprintf(sb, " [%s]", ref)
		if flags := d.stateFlags(el, props); flags != "" {
			sb.WriteString(" ")
			sb.WriteString(flags)
		}
		if includeBounds {
			if rect, err := d.col.Provider.Bounds(el); err == nil {
				sb.WriteString(" ")
				sb.WriteString(rect.String())
			}
		}
		sb.WriteString("\n")
		noteFact(ref, role, name)
	}

	if depth >= maxDepth {
		return
	}
	children, err := d.col.Provider.Children(el)
	if err != nil {
		return
	}
	for _, child := range children {
		d.walk(child, depth+1, maxDepth, includeBounds, sb, noteFact)
	}
}

// stateFlags renders the node's optional state markers. Each flag appears
// only when the underlying capability is supported.
func (d *Driver) stateFlags(el Element, props Props) string {
	var flags []string
	if props.Disabled {
		flags = append(flags, "disabled")
	}
	if props.Offscreen {
		flags = append(flags, "offscreen")
	}

	pats, err := d.col.Provider.Patterns(el)
	if err == nil {
		if pats.Value != nil && pats.Value.ReadOnly {
			flags = append(flags, "readonly")
		}
		if pats.Toggle != nil {
			flags = append(flags, "checked:"+pats.Toggle.String())
		}
		if pats.Selected != nil && *pats.Selected {
			flags = append(flags, "selected")
		}
		if pats.Expanded != nil {
			if *pats.Expanded {
				flags = append(flags, "expanded")
			} else {
				flags = append(flags, "collapsed")
			}
		}
	}

	if len(flags) == 0 {
		return ""
	}
	return "(" + strings.Join(flags, ", ") + ")"
}
