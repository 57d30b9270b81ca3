package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldName = iota
	fieldPrice
	fieldDescription
	fieldCategory
	fieldImage
)

// formValues is the raw text of the create form.
type formValues struct {
	Name        string
	Price       string
	Description string
	Category    string
	ImagePath   string
}

type createForm struct {
	inputs     []textinput.Model
	focus      int
	submitting bool
	err        string
}

func newCreateForm(imageUpload bool) *createForm {
	labels := []string{"Name", "Price", "Description", "Category (id or name)", "Image file"}
	if !imageUpload {
		labels = labels[:fieldImage]
	}
	inputs := make([]textinput.Model, 0, len(labels))
	for i, l := range labels {
		inp := textinput.New()
		inp.Prompt = labelStyle.Render(l+": ") + " "
		if i == 0 {
			inp.Focus()
		}
		inputs = append(inputs, inp)
	}
	return &createForm{inputs: inputs}
}

func (f *createForm) values() formValues {
	v := formValues{
		Name:        f.inputs[fieldName].Value(),
		Price:       f.inputs[fieldPrice].Value(),
		Description: f.inputs[fieldDescription].Value(),
		Category:    strings.TrimSpace(f.inputs[fieldCategory].Value()),
	}
	if len(f.inputs) > fieldImage {
		v.ImagePath = strings.TrimSpace(f.inputs[fieldImage].Value())
	}
	return v
}

// update handles a key while the form is open. submit is true on enter and
// closed on esc; input is never cleared by either.
func (f *createForm) update(msg tea.KeyMsg) (submit, closed bool, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		return false, true, nil
	case "tab", "down", "shift+tab", "up":
		dir := 1
		if msg.String() == "shift+tab" || msg.String() == "up" {
			dir = -1
		}
		f.inputs[f.focus].Blur()
		f.focus = (f.focus + dir + len(f.inputs)) % len(f.inputs)
		return false, false, f.inputs[f.focus].Focus()
	case "enter":
		if f.submitting {
			return false, false, nil
		}
		return true, false, nil
	}
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return false, false, cmd
}

func (f *createForm) view() string {
	lines := []string{titleStyle.Render("New item")}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	switch {
	case f.submitting:
		lines = append(lines, "", dimStyle.Render("submitting..."))
	case f.err != "":
		lines = append(lines, "", errorStyle.Render(f.err))
	}
	lines = append(lines, "", dimStyle.Render("enter: create  esc: cancel  tab: next field"))
	return formBoxStyle.Render(strings.Join(lines, "\n"))
}
