package anniversary

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// iCalendar property names. go-ical takes them as plain strings.
const (
	propVersion      = "VERSION"
	propProdID       = "PRODID"
	propCalScale     = "CALSCALE"
	propMethod       = "METHOD"
	propCalName      = "X-WR-CALNAME"
	propCalDesc      = "X-WR-CALDESC"
	propCalTimezone  = "X-WR-TIMEZONE"
	propPublishedTTL = "X-PUBLISHED-TTL"
	propRefresh      = "REFRESH-INTERVAL"
	propUID          = "UID"
	propDTStart      = "DTSTART"
	propDTEnd        = "DTEND"
	propDTStamp      = "DTSTAMP"
	propCreated      = "CREATED"
	propLastModified = "LAST-MODIFIED"
	propSequence     = "SEQUENCE"
	propStatus       = "STATUS"
	propTransp       = "TRANSP"
	propSummary      = "SUMMARY"
	propDescription  = "DESCRIPTION"
)

// refreshInterval is advertised to calendar clients both as the RFC 7986
// REFRESH-INTERVAL and as the legacy X-PUBLISHED-TTL.
const refreshInterval = 6 * time.Hour

// FeedInfo carries the calendar-level metadata of a feed.
type FeedInfo struct {
	Title       string
	Description string
	AppName     string
	Version     string
	Language    string
	Timezone    string
	// UntitledLabel replaces an empty event summary so clients never show a
	// blank line.
	UntitledLabel string
}

func (f FeedInfo) prodID() string {
	return fmt.Sprintf("-//%s//%s %s//%s", f.AppName, f.AppName, f.Version, f.Language)
}

// RenderFeed serializes events into an iCalendar document. The caller
// injects now, which stamps CREATED, DTSTAMP and LAST-MODIFIED; everything
// else in the output is deterministic.
func RenderFeed(info FeedInfo, events []Event, now time.Time) ([]byte, error) {
	// go-ical refuses to encode a calendar without components, but an empty
	// feed is a legitimate state for a calendar with no dated people.
	if len(events) == 0 {
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:%s\r\nEND:VCALENDAR\r\n", info.prodID())
		return buf.Bytes(), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(propVersion, "2.0")
	cal.Props.SetText(propProdID, info.prodID())
	cal.Props.SetText(propCalScale, "GREGORIAN")
	cal.Props.SetText(propMethod, "PUBLISH")
	cal.Props.SetText(propCalName, info.Title)
	cal.Props.SetText(propCalDesc, info.Description)
	cal.Props.SetText(propCalTimezone, info.Timezone)
	cal.Props.SetText(propPublishedTTL, "PT6H")

	refreshProp := ical.NewProp(propRefresh)
	refreshProp.SetDuration(refreshInterval)
	cal.Props.Set(refreshProp)

	stamp := now.UTC()
	for _, e := range events {
		cal.Children = append(cal.Children, buildComponent(e, info.UntitledLabel, stamp))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func buildComponent(e Event, untitled string, stamp time.Time) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(propUID, e.UID())

	dtStart := ical.NewProp(propDTStart)
	dtStart.SetDate(e.Date)
	event.Props.Set(dtStart)

	// All-day events: DTEND is the exclusive end, the next day.
	dtEnd := ical.NewProp(propDTEnd)
	dtEnd.SetDate(e.Date.AddDate(0, 0, 1))
	event.Props.Set(dtEnd)

	for _, name := range []string{propCreated, propDTStamp, propLastModified} {
		p := ical.NewProp(name)
		p.SetDateTime(stamp)
		event.Props.Set(p)
	}

	event.Props.SetText(propSequence, "0")
	event.Props.SetText(propStatus, "CONFIRMED")
	event.Props.SetText(propTransp, "TRANSPARENT")

	summary := e.Summary
	if summary == "" {
		summary = untitled
	}
	event.Props.SetText(propSummary, summary)
	if e.Description != "" {
		event.Props.SetText(propDescription, e.Description)
	}

	return event.Component
}
