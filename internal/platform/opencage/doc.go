// Package opencage implements service.Geocoder on top of the OpenCage
// reverse geocoding API.
package opencage
