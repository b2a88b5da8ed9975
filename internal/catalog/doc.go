// Package catalog holds the fixed sets of models and voices the server
// accepts, along with the request defaults and allow-list validation.
package catalog
