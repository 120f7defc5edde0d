package platform

import "github.com/sko/reframe/pkg/types"

type XTwitter struct{}

func init() {
	Register(&XTwitter{})
}

func (p *XTwitter) GetName() string {
	return "x-twitter"
}

func (p *XTwitter) GetTargetSpec() types.TargetSpec {
	return types.TargetSpec{Width: 1280, Height: 720}
}

func (p *XTwitter) GetMaxDuration() int {
	return 140
}

func (p *XTwitter) GetVideoBitrate() string {
	return "5M"
}

func (p *XTwitter) GetOutputFormat() string {
	return "mp4"
}
