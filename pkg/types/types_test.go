// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package types

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AddMessage(t *testing.T) {
	s := &Session{ID: "s-1", TenantID: "acme", Question: "q"}

	s.AddMessage(Message{Role: "user", Content: "q", TokenCount: 5})
	s.AddMessage(Message{Role: "assistant", Content: "a", TokenCount: 7})

	assert.Equal(t, 2, s.MessageCount())
	assert.Equal(t, 12, s.TotalTokens)
	assert.False(t, s.UpdatedAt.IsZero())
}

// GetMessages returns a snapshot; mutating it must not touch the session.
func TestSession_GetMessagesIsACopy(t *testing.T) {
	s := &Session{}
	s.AddMessage(Message{Role: "user", Content: "original"})

	msgs := s.GetMessages()
	require.Len(t, msgs, 1)
	msgs[0].Content = "tampered"

	assert.Equal(t, "original", s.GetMessages()[0].Content)
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := &Session{ID: "s-1"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.AddMessage(Message{Role: "user", Content: fmt.Sprintf("m-%d-%d", n, j), TokenCount: 1})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = s.GetMessages()
				_ = s.MessageCount()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, s.MessageCount())
	assert.Equal(t, 200, s.TotalTokens)
}
