package transcript

import (
	"regexp"
	"strings"
)

// adultAge is the age from which the non-doctor speaker is assumed to be
// the patient rather than a family member.
const adultAge = 18

var (
	familyCues = []string{
		"我家孩子", "孩子", "我儿子", "我女儿", "我孙子", "我孙女",
		"他妈妈", "他爸爸", "她妈妈", "她爸爸", "家里",
	}
	patientAddressRe = regexp.MustCompile(`^(你好[，, ]*(医生|大夫)|(医生|大夫)[，,：: ]|请问(医生|大夫)|(医生|大夫)你好)`)
)

// skipForHeuristic reports whether a line is ignored by alternation.
func skipForHeuristic(ln Line) bool {
	if ln.Kind != LineDialogue {
		return true
	}
	return strings.HasSuffix(ln.Text, ":") || strings.HasSuffix(ln.Text, "：")
}

// nonDoctorRole picks who answers the doctor for the whole transcript.
func nonDoctorRole(age *int, firstLine string) Role {
	if age != nil && *age < adultAge {
		return RoleCaregiver
	}
	if containsAny(firstLine, familyCues) {
		return RoleCaregiver
	}
	return RolePatient
}

// isPatientInitiated reports whether the opening line addresses the doctor.
func isPatientInitiated(firstLine string) bool {
	return patientAddressRe.MatchString(firstLine)
}

// labelHeuristic runs strategy B across every segment of a transcript. Roles
// alternate strictly over the whole transcript, one line per turn.
func labelHeuristic(segments [][]Line, age *int) []labeledSegment {
	out := make([]labeledSegment, len(segments))

	var first string
	found := false
	for _, lines := range segments {
		for _, ln := range lines {
			if !skipForHeuristic(ln) {
				first, found = ln.Text, true
				break
			}
		}
		if found {
			break
		}
	}

	other := nonDoctorRole(age, first)
	current := RoleDoctor
	if found && isPatientInitiated(first) {
		current = other
	}

	for i, lines := range segments {
		var seg labeledSegment
		for _, ln := range lines {
			if skipForHeuristic(ln) {
				seg.entries = append(seg.entries, entry{raw: ln.Text})
				continue
			}
			t := Turn{Role: current, Text: ln.Text}
			seg.turns = append(seg.turns, t)
			seg.entries = append(seg.entries, entry{turn: &t})
			if current == RoleDoctor {
				current = other
			} else {
				current = RoleDoctor
			}
		}
		out[i] = seg
	}
	return out
}
