package main

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"
)

const (
	msgRequired = "required"
	msgInvalid  = "invalid"
	msgTooShort = "too short"

	minMessageLength = 10
)

// Deliberately loose: something@something.something with no whitespace.
var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ContactSubmission holds the contact form fields as typed by the visitor.
type ContactSubmission struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Subject string `form:"subject" json:"subject"`
	Message string `form:"message" json:"message"`
}

// ValidationResult maps a field name to its error. Absent means valid.
type ValidationResult map[string]string

func (v ValidationResult) Valid() bool { return len(v) == 0 }

// Fields lists the failing fields in a stable order.
func (v ValidationResult) Fields() []string {
	out := make([]string, 0, len(v))
	for f := range v {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validate runs every field rule and collects all failures.
func Validate(s ContactSubmission) ValidationResult {
	res := ValidationResult{}

	if strings.TrimSpace(s.Name) == "" {
		res[FieldName] = msgRequired
	}

	switch {
	case s.Email == "":
		res[FieldEmail] = msgRequired
	case !emailShape.MatchString(s.Email):
		res[FieldEmail] = msgInvalid
	}

	if strings.TrimSpace(s.Subject) == "" {
		res[FieldSubject] = msgRequired
	}

	msg := strings.TrimSpace(s.Message)
	switch {
	case msg == "":
		res[FieldMessage] = msgRequired
	case utf8.RuneCountInString(msg) < minMessageLength:
		res[FieldMessage] = msgTooShort
	}

	return res
}

func (s *ContactSubmission) set(field, value string) bool {
	switch field {
	case FieldName:
		s.Name = value
	case FieldEmail:
		s.Email = value
	case FieldSubject:
		s.Subject = value
	case FieldMessage:
		s.Message = value
	default:
		return false
	}
	return true
}
