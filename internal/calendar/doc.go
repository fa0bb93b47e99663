// Package calendar lists a user's calendars for any connected provider in one
// shape, and marks which of them the user has selected.
//
// Google uses the Calendar v3 calendarList endpoint, Microsoft uses Graph
// /me/calendars, and Zoom has no calendars. When the user has never saved a
// selection, Google defaults to the primary calendar and Microsoft to every
// calendar.
package calendar
