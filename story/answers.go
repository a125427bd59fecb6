package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Answer è la selezione fatta per una domanda. Nel JSON è una stringa per
// le domande a scelta singola e un array per quelle a scelta multipla.
type Answer struct {
	OptionID  string
	OptionIDs []string
	Multiple  bool
}

// MarshalJSON implementa json.Marshaler
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Multiple {
		ids := a.OptionIDs
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(ids)
	}
	return json.Marshal(a.OptionID)
}

// UnmarshalJSON implementa json.Unmarshaler
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("invalid multiple-choice answer: %w", err)
		}
		*a = Answer{OptionIDs: ids, Multiple: true}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid single-choice answer: %w", err)
	}
	*a = Answer{OptionID: id}
	return nil
}

// Selected restituisce gli id delle opzioni selezionate
func (a Answer) Selected() []string {
	if a.Multiple {
		return a.OptionIDs
	}
	if a.OptionID == "" {
		return nil
	}
	return []string{a.OptionID}
}

// Answers mappa id domanda -> risposta
type Answers map[string]Answer

// Select registra la scelta di un'opzione. Per la scelta singola checked
// sostituisce la risposta precedente e !checked la toglie solo se era
// quell'opzione; per la multipla checked aggiunge o rimuove.
func (a Answers) Select(q Question, optionID string, checked bool) error {
	if _, ok := q.Option(optionID); !ok {
		return &NotFoundError{Kind: "option", Key: optionID}
	}
	if q.Type == MultipleChoice {
		current := a[q.ID].OptionIDs
		if checked {
			if !slices.Contains(current, optionID) {
				current = append(slices.Clone(current), optionID)
			}
		} else {
			current = slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == optionID })
		}
		a[q.ID] = Answer{OptionIDs: current, Multiple: true}
		return nil
	}
	if !checked {
		if a[q.ID].OptionID == optionID {
			delete(a, q.ID)
		}
		return nil
	}
	a[q.ID] = Answer{OptionID: optionID}
	return nil
}

// Answered dice se la domanda ha una risposta valida: un'opzione per la
// scelta singola, almeno una per la multipla
func (a Answers) Answered(q Question) bool {
	ans, ok := a[q.ID]
	if !ok {
		return false
	}
	if q.Type == MultipleChoice {
		return len(ans.OptionIDs) > 0
	}
	return ans.OptionID != ""
}

// AllAnswered verifica tutte le domande di una pagina
func (a Answers) AllAnswered(p Page) bool {
	for _, q := range p.Questions {
		if !a.Answered(q) {
			return false
		}
	}
	return true
}

// Clone copia le risposte
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		v.OptionIDs = slices.Clone(v.OptionIDs)
		out[k] = v
	}
	return out
}
