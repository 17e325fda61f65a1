// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import _ "embed"

// PrimingText is the hidden therapeutic protocol sent to the model as the
// first (invisible) user turn. It never appears in the transcript.
//
//go:embed priming_ar.txt
var PrimingText string

// OpeningMessage is the scripted assistant introduction. It doubles as the
// model turn closing the priming exchange and as the first visible transcript
// entry.
const OpeningMessage = "نعم، فهمت. أنا 'مساعدك العلاجي الشخصي'. سأتبع الخطة العلاجية بدقة. أنا جاهز للبدء. من فضلك، صف لي شعورك الآن (الخطوة 0)."

// FallbackMessage replaces the assistant reply when the backend call fails.
// The user always gets visible feedback; raw backend errors never surface.
const FallbackMessage = "عذراً، حدث خطأ ما. يرجى المحاولة مرة أخرى."
