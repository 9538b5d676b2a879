// Package browser opens web pages with the platform's default launcher.
package browser
