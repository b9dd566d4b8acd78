package speech

import (
	"bufio"
	"bytes"
	"strings"

	"interviewroom/internal/types"
)

// SelectVoice returns the first voice matching a preference, trying
// preferences in order. A preference matches a voice whose name contains it
// or whose language equals it, ignoring case. Without a match the first voice
// is used, and nil means the engine's default voice.
func SelectVoice(voices []types.Voice, prefer []string) *types.Voice {
	for _, p := range prefer {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		for i := range voices {
			if strings.Contains(strings.ToLower(voices[i].Name), p) ||
				strings.EqualFold(voices[i].Language, p) {
				return &voices[i]
			}
		}
	}
	if len(voices) > 0 {
		return &voices[0]
	}
	return nil
}

// parseSayVoices parses `say -v ?`, whose lines look like
//
//	Samantha            en_US    # Hello, my name is Samantha.
func parseSayVoices(out []byte) []types.Voice {
	var voices []types.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line, sample, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		voices = append(voices, types.Voice{
			Name:     strings.Join(fields[:len(fields)-1], " "),
			Language: fields[len(fields)-1],
			Sample:   strings.TrimSpace(sample),
		})
	}
	return voices
}

// parseEspeakVoices parses `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 2)
func parseEspeakVoices(out []byte) []types.Voice {
	var voices []types.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, types.Voice{
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		})
	}
	return voices
}
