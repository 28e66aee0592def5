package telephony

import (
	"encoding/xml"
)

// TwiMLResponse TwiML response document
type TwiMLResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     []Say    `xml:"Say,omitempty"`
	Play    []Play   `xml:"Play,omitempty"`
	Gather  *Gather  `xml:"Gather,omitempty"`
	Dial    *Dial    `xml:"Dial,omitempty"`
	Pause   *Pause   `xml:"Pause,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

// Say TwiML Say verb
type Say struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

// Play TwiML Play verb
type Play struct {
	URL string `xml:",chardata"`
}

// Gather TwiML Gather verb, configured for speech input
type Gather struct {
	Input         string `xml:"input,attr,omitempty"`
	Action        string `xml:"action,attr,omitempty"`
	Method        string `xml:"method,attr,omitempty"`
	Timeout       int    `xml:"timeout,attr,omitempty"`
	SpeechTimeout string `xml:"speechTimeout,attr,omitempty"`
	Say           *Say   `xml:"Say,omitempty"`
	Play          *Play  `xml:"Play,omitempty"`
}

// Dial TwiML Dial verb, used for human handoff
type Dial struct {
	Number string `xml:",chardata"`
}

// Pause TwiML Pause verb
type Pause struct {
	Length int `xml:"length,attr,omitempty"`
}

// Hangup TwiML Hangup verb
type Hangup struct{}

// Render serializes the response with the XML declaration Twilio expects.
func (r *TwiMLResponse) Render() ([]byte, error) {
	data, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}
