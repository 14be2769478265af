package ledger

// Document is the persisted JSON shape of one book.
type Document struct {
	ActivityTimes map[string]map[string]ActivityAccount `json:"activity_times"`
	VoiceTimes    map[string]VoiceAccount               `json:"voice_times"`
	PeriodStart   int64                                 `json:"period_start,omitempty"`
}

// NewDocument returns an empty document with initialized maps.
func NewDocument() Document {
	return Document{
		ActivityTimes: make(map[string]map[string]ActivityAccount),
		VoiceTimes:    make(map[string]VoiceAccount),
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := NewDocument()
	out.PeriodStart = d.PeriodStart
	for user, acts := range d.ActivityTimes {
		copied := make(map[string]ActivityAccount, len(acts))
		for name, acc := range acts {
			acc.OngoingStart = clonePtr(acc.OngoingStart)
			copied[name] = acc
		}
		out.ActivityTimes[user] = copied
	}
	for user, acc := range d.VoiceTimes {
		acc.OngoingStart = clonePtr(acc.OngoingStart)
		out.VoiceTimes[user] = acc
	}
	return out
}

// Book is the in-memory form of a document.
type Book struct {
	activities map[string]map[string]*ActivityAccount
	voice      map[string]*VoiceAccount
}

func newBook() *Book {
	return &Book{
		activities: make(map[string]map[string]*ActivityAccount),
		voice:      make(map[string]*VoiceAccount),
	}
}

// bookFromDocument copies a document into a fresh book.
func bookFromDocument(d Document) *Book {
	b := newBook()
	for user, acts := range d.ActivityTimes {
		if len(acts) == 0 {
			continue
		}
		accounts := make(map[string]*ActivityAccount, len(acts))
		for name, acc := range acts {
			acc := acc
			acc.OngoingStart = clonePtr(acc.OngoingStart)
			accounts[name] = &acc
		}
		b.activities[user] = accounts
	}
	for user, acc := range d.VoiceTimes {
		acc := acc
		acc.OngoingStart = clonePtr(acc.OngoingStart)
		b.voice[user] = &acc
	}
	return b
}

func (b *Book) document() Document {
	d := NewDocument()
	for user, acts := range b.activities {
		copied := make(map[string]ActivityAccount, len(acts))
		for name, acc := range acts {
			c := *acc
			c.OngoingStart = clonePtr(acc.OngoingStart)
			copied[name] = c
		}
		d.ActivityTimes[user] = copied
	}
	for user, acc := range b.voice {
		c := *acc
		c.OngoingStart = clonePtr(acc.OngoingStart)
		d.VoiceTimes[user] = c
	}
	return d
}

// activity returns the account for user/name, creating it zeroed if absent.
func (b *Book) activity(user, name string) *ActivityAccount {
	acts, ok := b.activities[user]
	if !ok {
		acts = make(map[string]*ActivityAccount)
		b.activities[user] = acts
	}
	acc, ok := acts[name]
	if !ok {
		acc = &ActivityAccount{}
		acts[name] = acc
	}
	return acc
}

func (b *Book) lookupActivity(user, name string) *ActivityAccount {
	return b.activities[user][name]
}

func (b *Book) voiceAccount(user string) *VoiceAccount {
	acc, ok := b.voice[user]
	if !ok {
		acc = &VoiceAccount{}
		b.voice[user] = acc
	}
	return acc
}

func (b *Book) clearSessions() (cleared int) {
	for _, acts := range b.activities {
		for _, acc := range acts {
			if acc.OngoingStart != nil {
				acc.OngoingStart = nil
				cleared++
			}
		}
	}
	for _, acc := range b.voice {
		if acc.OngoingStart != nil {
			acc.OngoingStart = nil
			cleared++
		}
	}
	return cleared
}
