package domain

// UICommand is drawn from the fixed vocabulary understood by UI surfaces.
type UICommand string

const (
	CommandCreateWidget  UICommand = "CreateDialogueWidget"
	CommandCloseWidget   UICommand = "CloseDialogueWidget"
	CommandShowRow       UICommand = "ShowDialogueRow"
	CommandUpdateRow     UICommand = "UpdateDialogueRow"
	CommandHideRow       UICommand = "HideDialogueRow"
	CommandAddOptions    UICommand = "AddDialogueOptions"
	CommandRemoveOptions UICommand = "RemoveDialogueOptions"
	CommandShowSkip      UICommand = "ShowSkipUI"
	CommandHideSkip      UICommand = "HideSkipUI"
)

// UICommands lists the whole vocabulary.
func UICommands() []UICommand {
	return []UICommand{
		CommandCreateWidget, CommandCloseWidget,
		CommandShowRow, CommandUpdateRow, CommandHideRow,
		CommandAddOptions, CommandRemoveOptions,
		CommandShowSkip, CommandHideSkip,
	}
}

// Valid reports whether c belongs to the vocabulary.
func (c UICommand) Valid() bool {
	for _, known := range UICommands() {
		if c == known {
			return true
		}
	}
	return false
}
