package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Pass       key.Binding
	Fail       key.Binding
	Unset      key.Binding
	Output     key.Binding
	Behavior   key.Binding
	Submit     key.Binding
	Edit       key.Binding
	StartOver  key.Binding
	Next       key.Binding
	Previous   key.Binding
	Help       key.Binding
	Close      key.Binding
	ForceQuit  key.Binding
	ConfirmYes key.Binding
	ConfirmNo  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Pass:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "pass")),
		Fail:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "fail")),
		Unset:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unset")),
		Output:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "output")),
		Behavior:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "unexpected")),
		Submit:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "submit")),
		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		StartOver:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "start over")),
		Next:       key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		Previous:   key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Close:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "save & close")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		ConfirmYes: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		ConfirmNo:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pass, k.Fail, k.Submit, k.Next, k.Previous, k.Close, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Pass, k.Fail, k.Unset},
		{k.Output, k.Behavior, k.Submit, k.Edit, k.StartOver},
		{k.Next, k.Previous, k.Close, k.ForceQuit, k.Help},
	}
}
