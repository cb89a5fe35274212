// Package userdata manages the ~/.mycelium/ directory: path resolution for
// the global scope, the project scope and the canonical skills directory,
// the .env file that supplies values for ${NAME} substitution, first-run
// initialization, and the health checks behind `mycelium doctor`.
package userdata
