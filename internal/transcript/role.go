package transcript

import "strings"

// Role is the canonical speaker of a turn.
type Role string

const (
	RoleDoctor    Role = "doctor"
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
	RoleOther     Role = "other"
)

var (
	doctorPrefixes  = []string{"医生", "大夫", "Doctor", "doctor", "Dr", "D"}
	patientPrefixes = []string{"患者", "病人", "Patient", "patient", "P"}
	relationCues    = []string{
		"家属", "家长", "父母", "父亲", "母亲", "爸爸", "妈妈", "妻子", "丈夫", "配偶", "孩子",
		"Family", "family", "Parent", "parent",
	}
)

// ClassifyRole maps a raw speaker token to a canonical role.
func ClassifyRole(token string) Role {
	t := strings.TrimSpace(token)
	switch {
	case hasAnyPrefix(t, doctorPrefixes):
		return RoleDoctor
	case hasAnyPrefix(t, patientPrefixes):
		if containsAny(t, relationCues) {
			return RoleCaregiver
		}
		return RolePatient
	case containsAny(t, relationCues):
		return RoleCaregiver
	default:
		return RoleOther
	}
}

// classifyTag classifies a bracket tag whose annotation has already been split off.
// The annotation still counts as a relation cue: 【P（母亲）】 is the mother speaking.
func classifyTag(token, note string) Role {
	role := ClassifyRole(token)
	if (role == RolePatient || role == RoleOther) && containsAny(note, relationCues) {
		return RoleCaregiver
	}
	return role
}

// canonicalLabel is the inline label written by Normalize.
func canonicalLabel(r Role) string {
	switch r {
	case RoleDoctor:
		return "医生"
	case RolePatient:
		return "患者"
	case RoleCaregiver:
		return "患者家属"
	default:
		return "其他"
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
