package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StepPrinterFunc returns a handler printing each reasoning step as it arrives, and the
// final answer once the run is done.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		if isFirst && name != "" {
			isFirst = false
			if _, err := fmt.Fprintf(w, "\n%s: \n", name); err != nil {
				return err
			}
		}

		switch p_ := e.(type) {
		case *EventRunStarted:
			_, err = fmt.Fprintf(w, "\n> %s\n", p_.Question)

		case *EventReasoningStep:
			_, err = fmt.Fprintf(w, "\n### Step %d: %s\n\n%s\n",
				p_.Metadata().Step+1, p_.Title, strings.TrimRight(p_.Reasoning, "\n"))
			if err == nil {
				_, err = fmt.Fprintf(w, "\n(%s, %s)\n", p_.Metadata().Variant, p_.Decision)
			}

		case *EventFinal:
			_, err = fmt.Fprintf(w, "\n### Final answer\n\n%s", p_.Text)
			if err == nil && !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
			}

		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
		}

		return err
	}
}
