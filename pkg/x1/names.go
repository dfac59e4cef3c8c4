package x1

var buttonNames = [ButtonCount]string{
	ButtonDeck1FxOn:      "deck1_fx_on",
	ButtonDeck2FxOn:      "deck2_fx_on",
	ButtonDeck1Fx1:       "deck1_fx1",
	ButtonDeck2Fx1:       "deck2_fx1",
	ButtonDeck1Fx2:       "deck1_fx2",
	ButtonDeck2Fx2:       "deck2_fx2",
	ButtonDeck1Fx3:       "deck1_fx3",
	ButtonDeck2Fx3:       "deck2_fx3",
	ButtonDeck1Load:      "deck1_load",
	ButtonShift:          "shift",
	ButtonDeck2Load:      "deck2_load",
	ButtonDeck1FxAssign1: "deck1_fx_assign1",
	ButtonDeck1FxAssign2: "deck1_fx_assign2",
	ButtonDeck2FxAssign1: "deck2_fx_assign1",
	ButtonDeck2FxAssign2: "deck2_fx_assign2",
	ButtonDeck1Loop:      "deck1_loop",
	ButtonHotcue:         "hotcue",
	ButtonDeck2Loop:      "deck2_loop",
	ButtonDeck1In:        "deck1_in",
	ButtonDeck1Out:       "deck1_out",
	ButtonDeck2In:        "deck2_in",
	ButtonDeck2Out:       "deck2_out",
	ButtonDeck1BeatLeft:  "deck1_beat_left",
	ButtonDeck1BeatRight: "deck1_beat_right",
	ButtonDeck2BeatLeft:  "deck2_beat_left",
	ButtonDeck2BeatRight: "deck2_beat_right",
	ButtonDeck1Cue:       "deck1_cue",
	ButtonDeck1Cup:       "deck1_cup",
	ButtonDeck2Cue:       "deck2_cue",
	ButtonDeck2Cup:       "deck2_cup",
	ButtonDeck1Play:      "deck1_play",
	ButtonDeck1Sync:      "deck1_sync",
	ButtonDeck2Play:      "deck2_play",
	ButtonDeck2Sync:      "deck2_sync",
}

var encoderNames = [EncoderCount]string{
	EncoderDeck1Browse: "deck1_browse",
	EncoderDeck2Browse: "deck2_browse",
	EncoderDeck1Loop:   "deck1_loop",
	EncoderDeck2Loop:   "deck2_loop",
}

var potNames = [PotCount]string{
	PotDeck1DryWet: "deck1_dry_wet",
	PotDeck1Fx1:    "deck1_fx1",
	PotDeck1Fx2:    "deck1_fx2",
	PotDeck1Fx3:    "deck1_fx3",
	PotDeck2DryWet: "deck2_dry_wet",
	PotDeck2Fx1:    "deck2_fx1",
	PotDeck2Fx2:    "deck2_fx2",
	PotDeck2Fx3:    "deck2_fx3",
}

func (id ButtonID) String() string {
	if id < 0 || id >= ButtonCount {
		return "unknown"
	}

	return buttonNames[id]
}

func (id EncoderID) String() string {
	if id < 0 || id >= EncoderCount {
		return "unknown"
	}

	return encoderNames[id]
}

func (id PotID) String() string {
	if id < 0 || id >= PotCount {
		return "unknown"
	}

	return potNames[id]
}

// ButtonByName resolves a configuration-friendly button name (e.g.
// "deck1_play") back to its id.
func ButtonByName(name string) (ButtonID, bool) {
	for id, candidate := range buttonNames {
		if candidate == name {
			return ButtonID(id), true
		}
	}

	return 0, false
}
