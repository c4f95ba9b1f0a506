// Package handlers provides stock task.ErrorHandler implementations.
package handlers
