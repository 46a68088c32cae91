package imap

import (
	"strings"

	goimap "github.com/emersion/go-imap"
	"golang.org/x/exp/slices"

	"github.com/inboxkit/courier/driver"
)

const importantKeyword = "$Important"

// toFlagChanges converts label changes into the flags to add and remove.
// Folder labels are not flags and are ignored; they are changed with Move.
func toFlagChanges(changes driver.Changes) (add, remove []interface{}) {
	for _, label := range changes.Add {
		if label == driver.LabelUnread {
			remove = append(remove, goimap.SeenFlag)
		} else if flag, ok := toFlag(label); ok {
			add = append(add, flag)
		}
	}

	for _, label := range changes.Remove {
		if label == driver.LabelUnread {
			add = append(add, goimap.SeenFlag)
		} else if flag, ok := toFlag(label); ok {
			remove = append(remove, flag)
		}
	}

	return add, remove
}

func toFlag(label driver.LabelID) (string, bool) {
	switch {
	case driver.IsFolder(label):
		return "", false

	case label == driver.LabelStarred:
		return goimap.FlaggedFlag, true

	case label == driver.LabelImportant:
		return importantKeyword, true

	case label == driver.LabelDraft:
		return goimap.DraftFlag, true

	default:
		return keyword(label), true
	}
}

// keyword turns a label into a valid IMAP flag keyword.
func keyword(label driver.LabelID) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r <= ' ', r >= 0x7f, strings.ContainsRune(`(){%*"\]`, r):
			return '_'

		default:
			return r
		}
	}, string(label))
}

// fromFlags converts message flags to labels.
func fromFlags(flags []string) []driver.LabelID {
	var labels []driver.LabelID

	if !slices.Contains(flags, goimap.SeenFlag) {
		labels = append(labels, driver.LabelUnread)
	}

	for _, flag := range flags {
		switch flag {
		case goimap.SeenFlag, goimap.RecentFlag, goimap.DeletedFlag, goimap.AnsweredFlag:

		case goimap.FlaggedFlag:
			labels = append(labels, driver.LabelStarred)

		case goimap.DraftFlag:
			labels = append(labels, driver.LabelDraft)

		case importantKeyword:
			labels = append(labels, driver.LabelImportant)

		default:
			labels = append(labels, driver.LabelID(flag))
		}
	}

	return labels
}
